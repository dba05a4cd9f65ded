//go:build !darwin && !(linux && cgo)

package hotkey

import "errors"

var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

type noopManager struct{}

// New returns a manager that refuses registrations. The tray menu still works.
func New() (Manager, error) {
	return noopManager{}, nil
}

func (noopManager) Register(accel string, _ func(bool)) error {
	if _, err := ParseAccelerator(accel); err != nil {
		return err
	}
	return ErrUnsupported
}

func (noopManager) Unregister(string) error { return nil }

func (noopManager) Close() error { return nil }
