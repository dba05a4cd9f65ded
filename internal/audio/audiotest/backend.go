// Package audiotest provides an in-memory audio.Backend whose stream
// callbacks are driven by the test instead of hardware.
package audiotest

import (
	"fmt"
	"sync"

	"github.com/petems/rolling-sampler/internal/audio"
)

// Backend is a scripted audio.Backend. Zero value has no devices.
type Backend struct {
	mu      sync.Mutex
	inputs  []audio.Device
	outputs []audio.Device
	streams []*Stream
	closed  bool

	// OpenErr, when set, is returned by the next OpenInput/OpenOutput call.
	OpenErr error
}

// New returns a backend exposing the given devices.
func New(inputs, outputs []audio.Device) *Backend {
	return &Backend{inputs: inputs, outputs: outputs}
}

// Mic returns a float32 device with the given native configuration.
func Mic(id string, rate float64, channels int, isDefault bool) audio.Device {
	return audio.Device{
		ID:      id,
		Name:    id,
		Default: isDefault,
		Format:  audio.Format{SampleRate: rate, Channels: channels},
	}
}

func (b *Backend) SetInputs(devices []audio.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = devices
}

func (b *Backend) SetOutputs(devices []audio.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = devices
}

func (b *Backend) InputDevices() ([]audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, audio.ErrBackendClosed
	}
	return append([]audio.Device(nil), b.inputs...), nil
}

func (b *Backend) OutputDevices() ([]audio.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, audio.ErrBackendClosed
	}
	return append([]audio.Device(nil), b.outputs...), nil
}

func (b *Backend) DefaultInput() (audio.Device, error) {
	devices, err := b.InputDevices()
	if err != nil {
		return audio.Device{}, err
	}
	return audio.FindDevice(devices, "")
}

func (b *Backend) DefaultOutput() (audio.Device, error) {
	devices, err := b.OutputDevices()
	if err != nil {
		return audio.Device{}, err
	}
	return audio.FindDevice(devices, "")
}

func (b *Backend) OpenInput(dev audio.Device, f audio.Format, onData audio.InputCallback, onError audio.ErrorCallback) (audio.Stream, error) {
	s, err := b.open(dev, f, true)
	if err != nil {
		return nil, err
	}
	s.onData = onData
	s.onError = onError
	return s, nil
}

func (b *Backend) OpenOutput(dev audio.Device, f audio.Format, framesPerBuffer int, fill audio.OutputCallback, onError audio.ErrorCallback) (audio.Stream, error) {
	s, err := b.open(dev, f, false)
	if err != nil {
		return nil, err
	}
	s.fill = fill
	s.onError = onError
	s.FramesPerBuffer = framesPerBuffer
	return s, nil
}

func (b *Backend) open(dev audio.Device, f audio.Format, input bool) (*Stream, error) {
	if err := audio.CheckFormat(f); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, audio.ErrBackendClosed
	}
	if b.OpenErr != nil {
		err := b.OpenErr
		b.OpenErr = nil
		return nil, err
	}

	devices := b.outputs
	if input {
		devices = b.inputs
	}
	if _, err := audio.FindDevice(devices, dev.ID); err != nil {
		return nil, err
	}

	s := &Stream{device: dev, format: f, Input: input}
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Streams returns every stream opened so far, closed ones included.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.streams...)
}

// ActiveInput returns the most recent open input stream, or nil.
func (b *Backend) ActiveInput() *Stream { return b.active(true) }

// ActiveOutput returns the most recent open output stream, or nil.
func (b *Backend) ActiveOutput() *Stream { return b.active(false) }

// OpenCount reports how many streams of the given direction are open.
func (b *Backend) OpenCount(input bool) int {
	n := 0
	for _, s := range b.Streams() {
		if s.Input == input && !s.Closed() {
			n++
		}
	}
	return n
}

func (b *Backend) active(input bool) *Stream {
	streams := b.Streams()
	for i := len(streams) - 1; i >= 0; i-- {
		s := streams[i]
		if s.Input == input && !s.Closed() {
			return s
		}
	}
	return nil
}

// Stream is a fake stream. Its callbacks run on the calling goroutine.
type Stream struct {
	mu      sync.Mutex
	device  audio.Device
	format  audio.Format
	closed  bool
	onData  audio.InputCallback
	fill    audio.OutputCallback
	onError audio.ErrorCallback

	Input           bool
	FramesPerBuffer int
}

func (s *Stream) Device() audio.Device { return s.device }
func (s *Stream) Format() audio.Format { return s.format }

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Deliver invokes the input callback with interleaved samples. It is a no-op
// once the stream is closed.
func (s *Stream) Deliver(samples []float32) {
	s.mu.Lock()
	cb, closed := s.onData, s.closed
	s.mu.Unlock()
	if closed || cb == nil {
		return
	}
	cb(samples, s.format.Channels)
}

// Pull invokes the output callback for one block of frames and returns it.
func (s *Stream) Pull(frames int) []float32 {
	out := make([]float32, frames*s.format.Channels)
	s.mu.Lock()
	cb, closed := s.fill, s.closed
	s.mu.Unlock()
	if closed || cb == nil {
		return out
	}
	cb(out, s.format.Channels)
	return out
}

// Fail reports a runtime error through the stream's error callback.
func (s *Stream) Fail(err error) {
	if s.onError != nil {
		s.onError(fmt.Errorf("%s: %w", s.device.Name, err))
	}
}
