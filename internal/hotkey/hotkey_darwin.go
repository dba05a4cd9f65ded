//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

#define MAX_HOTKEYS 16

extern void goHotkeyCallback(int id, int pressed);

static EventHotKeyRef hotKeyRefs[MAX_HOTKEYS];
static int handlerInstalled = 0;

static OSStatus hotkeyHandler(EventHandlerCallRef nextHandler, EventRef theEvent, void* userData) {
    EventHotKeyID hkRef;
    GetEventParameter(theEvent, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkRef), NULL, &hkRef);

    UInt32 eventKind = GetEventKind(theEvent);
    int pressed = (eventKind == kEventHotKeyPressed) ? 1 : 0;

    goHotkeyCallback((int)hkRef.id, pressed);

    return noErr;
}

static int registerHotkey(UInt32 keyCode, UInt32 modifiers, int id) {
    if (id < 0 || id >= MAX_HOTKEYS) return 0;

    if (!handlerInstalled) {
        EventTypeSpec eventTypes[2];
        eventTypes[0].eventClass = kEventClassKeyboard;
        eventTypes[0].eventKind = kEventHotKeyPressed;
        eventTypes[1].eventClass = kEventClassKeyboard;
        eventTypes[1].eventKind = kEventHotKeyReleased;

        InstallApplicationEventHandler(NewEventHandlerUPP(hotkeyHandler), 2, eventTypes, NULL, NULL);
        handlerInstalled = 1;
    }

    EventHotKeyID hotKeyID;
    hotKeyID.signature = 'rsmp';
    hotKeyID.id = id;

    OSStatus status = RegisterEventHotKey(keyCode, modifiers, hotKeyID, GetApplicationEventTarget(), 0, &hotKeyRefs[id]);

    return (status == noErr) ? 1 : 0;
}

static void unregisterHotkey(int id) {
    if (id < 0 || id >= MAX_HOTKEYS || hotKeyRefs[id] == NULL) return;
    UnregisterEventHotKey(hotKeyRefs[id]);
    hotKeyRefs[id] = NULL;
}
*/
import "C"

import (
	"fmt"
	"sync"
)

const maxHotkeys = 16

// Carbon virtual key codes.
var carbonKeyCodes = map[string]uint32{
	"a": 0, "s": 1, "d": 2, "f": 3, "h": 4, "g": 5, "z": 6, "x": 7, "c": 8, "v": 9,
	"b": 11, "q": 12, "w": 13, "e": 14, "r": 15, "y": 16, "t": 17,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25, "7": 26, "8": 28, "0": 29,
	"o": 31, "u": 32, "i": 34, "p": 35, "l": 37, "j": 38, "k": 40, "n": 45, "m": 46,
	"space": 49,
	"f1": 122, "f2": 120, "f3": 99, "f4": 118, "f5": 96, "f6": 97,
	"f7": 98, "f8": 100, "f9": 101, "f10": 109, "f11": 103, "f12": 111,
}

type darwinManager struct {
	mu        sync.Mutex
	ids       map[string]int
	callbacks [maxHotkeys]func(bool)
}

var globalManager *darwinManager

// New creates a new macOS hotkey manager using Carbon
func New() (Manager, error) {
	mgr := &darwinManager{ids: make(map[string]int)}
	globalManager = mgr
	return mgr, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.int, pressed C.int) {
	m := globalManager
	if m == nil || id < 0 || int(id) >= maxHotkeys {
		return
	}
	m.mu.Lock()
	cb := m.callbacks[id]
	m.mu.Unlock()
	if cb != nil {
		cb(pressed == 1)
	}
}

// carbonModifiers maps modifiers to cmdKey, shiftKey, optionKey and controlKey.
func carbonModifiers(mods Modifier) uint32 {
	var mask uint32
	if mods&ModSuper != 0 {
		mask |= 0x100
	}
	if mods&ModShift != 0 {
		mask |= 0x200
	}
	if mods&ModAlt != 0 {
		mask |= 0x800
	}
	if mods&ModCtrl != 0 {
		mask |= 0x1000
	}
	return mask
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	keyCode, ok := carbonKeyCodes[a.Key]
	if !ok {
		return fmt.Errorf("no key code for %s", a)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := -1
	for i, cb := range m.callbacks {
		if cb == nil {
			id = i
			break
		}
	}
	if id < 0 {
		return fmt.Errorf("too many hotkeys registered")
	}

	if C.registerHotkey(C.UInt32(keyCode), C.UInt32(carbonModifiers(a.Mods)), C.int(id)) == 0 {
		return fmt.Errorf("failed to register hotkey %s", a)
	}
	m.callbacks[id] = callback
	m.ids[a.String()] = id
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	a, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.ids[a.String()]
	if !ok {
		return nil
	}
	C.unregisterHotkey(C.int(id))
	m.callbacks[id] = nil
	delete(m.ids, a.String())
	return nil
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	for key, id := range m.ids {
		C.unregisterHotkey(C.int(id))
		m.callbacks[id] = nil
		delete(m.ids, key)
	}
	m.mu.Unlock()
	globalManager = nil
	return nil
}
