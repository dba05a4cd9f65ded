package audio

import "fmt"

// SampleFormat identifies how a device delivers samples.
type SampleFormat int

const (
	FormatFloat32 SampleFormat = iota
	FormatOther
)

func (f SampleFormat) String() string {
	switch f {
	case FormatFloat32:
		return "f32"
	case FormatOther:
		return "other"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Format describes a stream configuration.
type Format struct {
	SampleRate   float64
	Channels     int
	SampleFormat SampleFormat
}

func (f Format) String() string {
	return fmt.Sprintf("%.0f Hz, %d ch, %s", f.SampleRate, f.Channels, f.SampleFormat)
}

// Device represents an audio input or output device
type Device struct {
	ID      string
	Name    string
	Default bool
	Format  Format
}

// NativeFormat returns the device's preferred stream configuration.
func (d Device) NativeFormat() Format { return d.Format }

func (d Device) String() string {
	if d.Default {
		return d.Name + " (default)"
	}
	return d.Name
}

// InputCallback receives interleaved samples from a capture stream. It runs
// on the device's real-time thread and must not block.
type InputCallback func(samples []float32, channels int)

// OutputCallback fills an interleaved block for a playback stream. Like
// InputCallback it runs on the device's real-time thread.
type OutputCallback func(out []float32, channels int)

// ErrorCallback reports runtime stream errors. The stream keeps running.
type ErrorCallback func(err error)

// Stream is an active hardware stream. Closing it stops the callbacks.
type Stream interface {
	Device() Device
	Format() Format
	Close() error
}

// Backend enumerates devices and opens callback-driven streams.
type Backend interface {
	InputDevices() ([]Device, error)
	OutputDevices() ([]Device, error)
	DefaultInput() (Device, error)
	DefaultOutput() (Device, error)
	// OpenInput opens and starts a capture stream.
	OpenInput(dev Device, f Format, onData InputCallback, onError ErrorCallback) (Stream, error)
	// OpenOutput opens and starts a playback stream that asks for
	// framesPerBuffer frames per callback.
	OpenOutput(dev Device, f Format, framesPerBuffer int, fill OutputCallback, onError ErrorCallback) (Stream, error)
	Close() error
}

// FindDevice returns the device whose ID matches id. An empty id selects the
// default device, or the first one if none is marked default.
func FindDevice(devices []Device, id string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDevices
	}
	if id == "" {
		for _, d := range devices {
			if d.Default {
				return d, nil
			}
		}
		return devices[0], nil
	}
	for _, d := range devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// CheckFormat rejects formats a stream cannot be built for.
func CheckFormat(f Format) error {
	if f.SampleFormat != FormatFloat32 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.SampleFormat)
	}
	if f.SampleRate <= 0 || f.Channels < 1 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return nil
}
