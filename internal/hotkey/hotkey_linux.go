//go:build linux && cgo

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

// Lock masks that must not stop the grab from matching.
static const unsigned int lockVariants[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};

int keycodeFor(const char* name) {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    if (displayPtr == NULL) return -1;

    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

void setGrab(int keycode, unsigned int modifiers, int grab) {
    Window root = DefaultRootWindow(displayPtr);
    for (int i = 0; i < 4; i++) {
        if (grab) {
            XGrabKey(displayPtr, keycode, modifiers | lockVariants[i], root, False, GrabModeAsync, GrabModeAsync);
        } else {
            XUngrabKey(displayPtr, keycode, modifiers | lockVariants[i], root);
        }
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);
}

int checkEvent(int* keycode, unsigned int* state, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *state = event.xkey.state;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"
)

// x11ModMask keeps Shift, Control, Mod1 and Mod4 from an event state. Lock,
// NumLock (Mod2) and pointer button bits are ignored.
const x11ModMask = 1 | 4 | 8 | 64

type linuxManager struct {
	keys      *dispatcher
	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	mgr := &linuxManager{
		keys: newDispatcher(),
		stop: make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

// x11Modifiers maps modifiers to X11 masks: ShiftMask, ControlMask, Mod1Mask, Mod4Mask.
func x11Modifiers(m Modifier) C.uint {
	var mask C.uint
	if m&ModShift != 0 {
		mask |= 1
	}
	if m&ModCtrl != 0 {
		mask |= 4
	}
	if m&ModAlt != 0 {
		mask |= 8
	}
	if m&ModSuper != 0 {
		mask |= 64
	}
	return mask
}

// keysymName converts a key to the name XStringToKeysym expects.
func keysymName(key string) string {
	if strings.HasPrefix(key, "f") && len(key) > 1 {
		return "F" + key[1:]
	}
	return key
}

func (m *linuxManager) resolve(accel string) (int, Accelerator, error) {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return 0, a, err
	}

	name := C.CString(keysymName(a.Key))
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.keycodeFor(name))
	switch {
	case keycode < 0:
		return 0, a, fmt.Errorf("failed to open X display")
	case keycode == 0:
		return 0, a, fmt.Errorf("no keycode for %s", a)
	}
	return keycode, a, nil
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	keycode, a, err := m.resolve(accel)
	if err != nil {
		return err
	}

	mods := x11Modifiers(a.Mods)
	C.setGrab(C.int(keycode), mods, 1)
	m.keys.set(keyBinding{code: keycode, mods: uint(mods)}, callback)
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			var state C.uint
			if C.checkEvent(&keycode, &state, &pressed) != 0 {
				m.keys.dispatch(int(keycode), uint(state)&x11ModMask, pressed == 1)
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	keycode, a, err := m.resolve(accel)
	if err != nil {
		return err
	}

	mods := x11Modifiers(a.Mods)
	C.setGrab(C.int(keycode), mods, 0)
	m.keys.remove(keyBinding{code: keycode, mods: uint(mods)})
	return nil
}

func (m *linuxManager) Close() error {
	m.closeOnce.Do(func() { close(m.stop) })
	return nil
}
