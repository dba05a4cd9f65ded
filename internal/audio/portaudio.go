package audio

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Devices often advertise far more channels than they deliver by default.
const maxNativeChannels = 2

// xrunInterval is how often status flags raised in callbacks are reported.
const xrunInterval = 250 * time.Millisecond

// PortAudioBackend implements Backend on top of PortAudio callback streams.
type PortAudioBackend struct {
	mu     sync.Mutex
	closed bool
}

// NewPortAudio initializes PortAudio. Close must be called to terminate it.
func NewPortAudio() (*PortAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioBackend{}, nil
}

func (p *PortAudioBackend) InputDevices() ([]Device, error) {
	return p.list(true)
}

func (p *PortAudioBackend) OutputDevices() ([]Device, error) {
	return p.list(false)
}

func (p *PortAudioBackend) DefaultInput() (Device, error) {
	return p.defaultDevice(true)
}

func (p *PortAudioBackend) DefaultOutput() (Device, error) {
	return p.defaultDevice(false)
}

func (p *PortAudioBackend) list(input bool) ([]Device, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var def *portaudio.DeviceInfo
	if input {
		def, _ = portaudio.DefaultInputDevice()
	} else {
		def, _ = portaudio.DefaultOutputDevice()
	}

	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if channelsFor(d, input) == 0 {
			continue
		}
		result = append(result, toDevice(d, input, def != nil && d.Name == def.Name))
	}
	return result, nil
}

func (p *PortAudioBackend) defaultDevice(input bool) (Device, error) {
	if err := p.check(); err != nil {
		return Device{}, err
	}
	var (
		d   *portaudio.DeviceInfo
		err error
	)
	if input {
		d, err = portaudio.DefaultInputDevice()
	} else {
		d, err = portaudio.DefaultOutputDevice()
	}
	if err != nil || d == nil {
		return Device{}, fmt.Errorf("%w: %v", ErrNoDevices, err)
	}
	return toDevice(d, input, true), nil
}

func (p *PortAudioBackend) OpenInput(dev Device, f Format, onData InputCallback, onError ErrorCallback) (Stream, error) {
	if err := CheckFormat(f); err != nil {
		return nil, err
	}
	info, err := p.lookup(dev, true)
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: f.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      f.SampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}

	channels := f.Channels
	watch := newFlagWatch(dev.Name, onError)
	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		watch.note(flags)
		onData(in, channels)
	}
	return p.open(dev, f, params, callback, watch)
}

func (p *PortAudioBackend) OpenOutput(dev Device, f Format, framesPerBuffer int, fill OutputCallback, onError ErrorCallback) (Stream, error) {
	if err := CheckFormat(f); err != nil {
		return nil, err
	}
	info, err := p.lookup(dev, false)
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: f.Channels,
			Latency:  info.DefaultHighOutputLatency,
		},
		SampleRate:      f.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	channels := f.Channels
	watch := newFlagWatch(dev.Name, onError)
	callback := func(out []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		watch.note(flags)
		fill(out, channels)
	}
	return p.open(dev, f, params, callback, watch)
}

func (p *PortAudioBackend) open(dev Device, f Format, params portaudio.StreamParameters, callback any, watch *flagWatch) (Stream, error) {
	if err := portaudio.IsFormatSupported(params, callback); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrUnsupportedFormat, f, dev.Name, err)
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	watch.start(xrunInterval)
	return &portAudioStream{stream: stream, device: dev, format: f, watch: watch}, nil
}

func (p *PortAudioBackend) lookup(dev Device, input bool) (*portaudio.DeviceInfo, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == dev.ID && channelsFor(d, input) > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, dev.ID)
}

func (p *PortAudioBackend) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrBackendClosed
	}
	return nil
}

// Close terminates PortAudio. Streams must be closed first.
func (p *PortAudioBackend) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

type portAudioStream struct {
	once   sync.Once
	stream *portaudio.Stream
	device Device
	format Format
	watch  *flagWatch
	err    error
}

func (s *portAudioStream) Device() Device { return s.device }
func (s *portAudioStream) Format() Format { return s.format }

func (s *portAudioStream) Close() error {
	s.once.Do(func() {
		stopErr := s.stream.Stop()
		closeErr := s.stream.Close()
		s.watch.close()
		if stopErr != nil {
			s.err = stopErr
		} else {
			s.err = closeErr
		}
	})
	return s.err
}

func channelsFor(d *portaudio.DeviceInfo, input bool) int {
	if input {
		return d.MaxInputChannels
	}
	return d.MaxOutputChannels
}

func toDevice(d *portaudio.DeviceInfo, input, isDefault bool) Device {
	return Device{
		ID:      d.Name,
		Name:    d.Name,
		Default: isDefault,
		Format: Format{
			SampleRate:   d.DefaultSampleRate,
			Channels:     min(channelsFor(d, input), maxNativeChannels),
			SampleFormat: FormatFloat32,
		},
	}
}

// flagWatch collects status flags on the real-time thread, where it must not
// allocate or block, and hands them to onError from its own goroutine.
type flagWatch struct {
	device  string
	onError ErrorCallback
	flags   atomic.Uint64
	stop    chan struct{}
	done    chan struct{}
}

func newFlagWatch(device string, onError ErrorCallback) *flagWatch {
	return &flagWatch{
		device:  device,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// note is called from the stream callback.
func (w *flagWatch) note(flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		w.flags.Or(uint64(flags))
	}
}

// report delivers everything noted since the previous report as one error.
func (w *flagWatch) report() {
	flags := w.flags.Swap(0)
	if flags != 0 && w.onError != nil {
		w.onError(flagError(w.device, portaudio.StreamCallbackFlags(flags)))
	}
}

func (w *flagWatch) start(interval time.Duration) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.report()
			case <-w.stop:
				w.report()
				return
			}
		}
	}()
}

// close stops the reporter after a final report. The stream must already
// be stopped.
func (w *flagWatch) close() {
	close(w.stop)
	<-w.done
}

func flagError(device string, flags portaudio.StreamCallbackFlags) error {
	return fmt.Errorf("%w on %s: %s", ErrXRun, device, describeFlags(flags))
}

func describeFlags(flags portaudio.StreamCallbackFlags) string {
	var names []string
	if flags&portaudio.InputUnderflow != 0 {
		names = append(names, "input underflow")
	}
	if flags&portaudio.InputOverflow != 0 {
		names = append(names, "input overflow")
	}
	if flags&portaudio.OutputUnderflow != 0 {
		names = append(names, "output underflow")
	}
	if flags&portaudio.OutputOverflow != 0 {
		names = append(names, "output overflow")
	}
	if flags&portaudio.PrimingOutput != 0 {
		names = append(names, "priming output")
	}
	if len(names) == 0 {
		return fmt.Sprintf("flags %#x", uint64(flags))
	}
	return strings.Join(names, ", ")
}
