package hotkey

import "sync"

// keyBinding is one grabbed combination: a platform key code and a modifier
// mask in the platform's encoding.
type keyBinding struct {
	code int
	mods uint
}

// dispatcher routes key events to callbacks by key code and modifiers. A
// release goes to the binding its press went to, since the modifiers may
// already be up by then.
type dispatcher struct {
	mu        sync.Mutex
	callbacks map[keyBinding]func(bool)
	held      map[int]keyBinding
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		callbacks: make(map[keyBinding]func(bool)),
		held:      make(map[int]keyBinding),
	}
}

func (d *dispatcher) set(b keyBinding, callback func(bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[b] = callback
}

func (d *dispatcher) remove(b keyBinding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.callbacks, b)
	if d.held[b.code] == b {
		delete(d.held, b.code)
	}
}

// dispatch runs the callback for the event, if any, outside the lock and
// reports whether one ran.
func (d *dispatcher) dispatch(code int, mods uint, pressed bool) bool {
	d.mu.Lock()
	var cb func(bool)
	if pressed {
		b := keyBinding{code: code, mods: mods}
		if cb = d.callbacks[b]; cb != nil {
			d.held[code] = b
		}
	} else if b, ok := d.held[code]; ok {
		delete(d.held, code)
		cb = d.callbacks[b]
	}
	d.mu.Unlock()

	if cb == nil {
		return false
	}
	cb(pressed)
	return true
}
