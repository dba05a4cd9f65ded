package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

var ErrInvalidAccelerator = errors.New("invalid accelerator")

// Accelerator is a parsed hotkey such as "Alt+G".
type Accelerator struct {
	Mods Modifier
	// Key is the lower-cased key name: "a".."z", "0".."9", "space", "f1".."f12".
	Key string
}

var modifierNames = map[string]Modifier{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

// ParseAccelerator parses "Mod+Mod+Key". Matching is case-insensitive and
// exactly one non-modifier key is required.
func ParseAccelerator(accel string) (Accelerator, error) {
	var a Accelerator
	parts := strings.Split(accel, "+")
	for i, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return Accelerator{}, fmt.Errorf("%w %q: empty key", ErrInvalidAccelerator, accel)
		}
		if mod, ok := modifierNames[name]; ok && i < len(parts)-1 {
			a.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("%w %q: unknown modifier %q", ErrInvalidAccelerator, accel, part)
		}
		if !validKey(name) {
			return Accelerator{}, fmt.Errorf("%w %q: unsupported key %q", ErrInvalidAccelerator, accel, part)
		}
		a.Key = name
	}
	return a, nil
}

func (a Accelerator) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModAlt, "Alt"}, {ModShift, "Shift"}, {ModSuper, "Super"}} {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	key := a.Key
	if len(key) > 1 {
		key = strings.ToUpper(key[:1]) + key[1:]
	} else {
		key = strings.ToUpper(key)
	}
	return strings.Join(append(parts, key), "+")
}

func validKey(name string) bool {
	if len(name) == 1 {
		c := name[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if name == "space" {
		return true
	}
	if len(name) >= 2 && name[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprint(n) == name[1:] {
			return true
		}
	}
	return false
}
