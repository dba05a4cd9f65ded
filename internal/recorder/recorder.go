package recorder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	"github.com/petems/rolling-sampler/internal/audio"
	"github.com/petems/rolling-sampler/internal/buffer"
	"github.com/petems/rolling-sampler/internal/config"
	"github.com/petems/rolling-sampler/internal/monitor"
	"github.com/petems/rolling-sampler/internal/notify"
	"github.com/petems/rolling-sampler/internal/wavfile"
	"github.com/rs/zerolog"
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetGrabbing()
	SetSaving()
	SetError()
}

type Config struct {
	Backend       audio.Backend
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater    // Optional - can be nil
	Publisher     notify.Publisher // Optional - defaults to notify.Nop
	Clipboard     func(string) error
	Now           func() time.Time
}

// recording is a drained grab that has not been written yet.
type recording struct {
	samples  []float32
	channels int
	rate     float64
	device   string
}

// Recorder owns the capture buffer, the input stream and, while monitoring,
// the output stream with its relay and pipeline.
type Recorder struct {
	backend  audio.Backend
	cfg      *config.Config
	log      zerolog.Logger
	status   StatusUpdater
	pub      notify.Publisher
	copyPath func(string) error
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	grabbing  bool
	input     audio.Stream
	inputDev  audio.Device
	format    audio.Format
	capture   *buffer.CaptureBuffer
	pending   []*recording // oldest first
	lastSaved string

	monitoring bool
	output     audio.Stream
	outputDev  audio.Device
	pipeline   *monitor.Pipeline

	// relay is read by the input callback on every block.
	relay        atomic.Pointer[monitor.Relay]
	streamErrors atomic.Uint64
}

func New(cfg Config) *Recorder {
	r := &Recorder{
		backend:  cfg.Backend,
		cfg:      cfg.Config,
		log:      cfg.Logger,
		status:   cfg.StatusUpdater,
		pub:      cfg.Publisher,
		copyPath: cfg.Clipboard,
		now:      cfg.Now,
	}
	if r.pub == nil {
		r.pub = notify.Nop{}
	}
	if r.copyPath == nil {
		r.copyPath = clipboard.WriteAll
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Start opens the configured input device (falling back to the system
// default) and, if enabled in the config, monitoring. Only a capture
// failure is returned; a monitoring failure is logged and leaves the
// recorder capturing without monitoring.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.resolveLocked(true, r.cfg.Audio.InputDeviceID)
	if err != nil {
		r.setErrorLocked()
		return err
	}
	if err := r.startCaptureLocked(dev); err != nil {
		r.setErrorLocked()
		return err
	}

	if r.cfg.Monitor.Enabled {
		if err := r.enableMonitoringLocked(); err != nil {
			r.log.Error().Err(err).Msg("Failed to start monitoring, continuing without it")
			r.setErrorLocked()
		}
	}
	return nil
}

// startCaptureLocked (re)starts capture on dev with a fresh rolling buffer.
func (r *Recorder) startCaptureLocked(dev audio.Device) error {
	format := dev.NativeFormat()
	if err := audio.CheckFormat(format); err != nil {
		return fmt.Errorf("input %s: %w", dev.Name, err)
	}

	capacity := r.cfg.WindowSeconds * int(math.Round(format.SampleRate)) * format.Channels
	buf, err := buffer.NewCaptureBuffer(capacity)
	if err != nil {
		return fmt.Errorf("failed to allocate capture buffer: %w", err)
	}

	if r.grabbing {
		r.log.Warn().Str("device", r.inputDev.Name).Msg("Discarding grab in progress")
		r.grabbing = false
	}
	r.closeInputLocked()

	onData := func(samples []float32, channels int) {
		buf.AddSamples(samples)
		if relay := r.relay.Load(); relay != nil {
			relay.PushInterleaved(samples, channels)
		}
	}
	stream, err := r.backend.OpenInput(dev, format, onData, r.streamErrorHandler("input", dev.Name))
	if err != nil {
		r.running = false
		r.capture = nil
		return fmt.Errorf("failed to open input %s: %w", dev.Name, err)
	}

	formatChanged := r.format != format
	r.input = stream
	r.inputDev = dev
	r.format = format
	r.capture = buf
	r.running = true

	r.log.Info().
		Str("device", dev.Name).
		Float64("rate", format.SampleRate).
		Int("channels", format.Channels).
		Int("window_seconds", r.cfg.WindowSeconds).
		Msg("Capture started")

	// The relay and pipeline are sized for the input format.
	if r.monitoring && formatChanged {
		if err := r.rebuildMonitorLocked(r.outputDev); err != nil {
			r.log.Error().Err(err).Msg("Failed to rebuild monitoring")
		}
	}

	if r.status != nil {
		r.status.SetRecording()
	}
	return nil
}

func (r *Recorder) closeInputLocked() {
	if r.input == nil {
		return
	}
	if err := r.input.Close(); err != nil {
		r.log.Warn().Err(err).Str("device", r.inputDev.Name).Msg("Failed to close input stream")
	}
	r.input = nil
}

// ResizeWindow changes the rolling window length. The current window is
// discarded and capture restarts.
func (r *Recorder) ResizeWindow(seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resizeLocked(seconds)
}

func (r *Recorder) resizeLocked(seconds int) error {
	if seconds < 1 || seconds > r.cfg.MaxWindowSeconds {
		return fmt.Errorf("window must be between 1 and %d seconds, got %d", r.cfg.MaxWindowSeconds, seconds)
	}
	if r.grabbing {
		return ErrAlreadyGrabbing
	}
	if seconds == r.cfg.WindowSeconds && r.running {
		return nil
	}

	r.cfg.WindowSeconds = seconds
	r.saveConfigLocked()

	if !r.running {
		return nil
	}
	return r.startCaptureLocked(r.inputDev)
}

// BeginGrab freezes the rolling window; capture continues into the grab.
func (r *Recorder) BeginGrab() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.beginGrabLocked()
}

func (r *Recorder) beginGrabLocked() error {
	if !r.running {
		return ErrNotRunning
	}
	if r.grabbing {
		return ErrAlreadyGrabbing
	}
	if err := r.capture.BeginFreeze(); err != nil {
		r.log.Error().Err(err).Msg("Capture buffer state out of sync")
		return err
	}

	r.grabbing = true
	r.log.Info().Msg("Grab started")
	if r.status != nil {
		r.status.SetGrabbing()
	}
	return nil
}

// EndGrabAndSave stops the grab, writes it to the configured save directory
// and restarts capture with a fresh rolling buffer. If writing fails the
// recording is queued for RetrySave.
func (r *Recorder) EndGrabAndSave() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endGrabLocked(r.cfg.SaveDir)
}

func (r *Recorder) endGrabLocked(dir string) (string, error) {
	if !r.grabbing {
		return "", ErrNotGrabbing
	}
	if r.status != nil {
		r.status.SetSaving()
	}

	r.closeInputLocked()
	r.grabbing = false

	samples, err := r.capture.DrainForPersistence()
	if err != nil {
		r.log.Error().Err(err).Msg("Capture buffer state out of sync")
		r.restartAfterGrabLocked()
		return "", err
	}

	rec := &recording{
		samples:  samples,
		channels: r.format.Channels,
		rate:     r.format.SampleRate,
		device:   r.inputDev.Name,
	}

	path, saveErr := r.persistLocked(dir, rec)
	if saveErr != nil {
		r.pending = append(r.pending, rec)
		r.log.Warn().Int("pending", len(r.pending)).Msg("Recording kept for retry")
	}
	r.restartAfterGrabLocked()
	if saveErr != nil {
		r.setErrorLocked()
		return "", saveErr
	}
	return path, nil
}

func (r *Recorder) restartAfterGrabLocked() {
	if err := r.startCaptureLocked(r.inputDev); err != nil {
		r.log.Error().Err(err).Msg("Failed to restart capture")
		r.setErrorLocked()
	}
}

// RetrySave writes every recording whose earlier save failed, oldest first,
// and returns the path of the last one written. It stops at the first
// failure; recordings not yet written stay queued.
func (r *Recorder) RetrySave(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return "", ErrNoPendingRecording
	}
	path, err := r.flushPendingLocked(dir)
	if err != nil {
		r.setErrorLocked()
		return path, err
	}
	if r.status != nil {
		if r.running {
			r.status.SetRecording()
		} else {
			r.status.SetIdle()
		}
	}
	return path, nil
}

func (r *Recorder) flushPendingLocked(dir string) (string, error) {
	var last string
	for len(r.pending) > 0 {
		path, err := r.persistLocked(dir, r.pending[0])
		if err != nil {
			return last, err
		}
		r.pending[0] = nil
		r.pending = r.pending[1:]
		last = path
	}
	r.pending = nil
	return last, nil
}

func (r *Recorder) persistLocked(dir string, rec *recording) (string, error) {
	at := r.now()

	path, err := wavfile.NextPath(dir, at)
	if err != nil {
		r.log.Error().Err(err).Str("dir", dir).Msg("Failed to choose file name")
		return "", err
	}
	if err := wavfile.Write(path, rec.channels, rec.rate, rec.samples); err != nil {
		r.log.Error().Err(err).Str("path", path).Int("samples", len(rec.samples)).Msg("Failed to save recording, keeping it for retry")
		return "", err
	}

	frames := len(rec.samples) / rec.channels
	seconds := float64(frames) / rec.rate
	r.log.Info().
		Str("path", path).
		Int("frames", frames).
		Int("channels", rec.channels).
		Float64("rate", rec.rate).
		Float64("seconds", seconds).
		Msg("Recording saved")

	r.lastSaved = path

	if r.cfg.CopyPathOnSave {
		if err := r.copyPath(path); err != nil {
			r.log.Warn().Err(err).Msg("Failed to copy path to clipboard")
		}
	}
	if err := r.pub.PublishSaved(notify.GrabSaved{
		Path:       path,
		Device:     rec.device,
		SampleRate: rec.rate,
		Channels:   rec.channels,
		Frames:     frames,
		Seconds:    seconds,
		SavedAt:    at.UTC(),
	}); err != nil {
		r.log.Warn().Err(err).Msg("Failed to publish grab")
	}
	return path, nil
}

// ToggleGrab begins a grab, or ends and saves the current one. The saved
// path is returned when a grab ends.
func (r *Recorder) ToggleGrab() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.grabbing {
		return r.endGrabLocked(r.cfg.SaveDir)
	}
	return "", r.beginGrabLocked()
}

// OnHotkey toggles the grab on key press.
func (r *Recorder) OnHotkey(pressed bool) {
	if !pressed {
		return
	}
	path, err := r.ToggleGrab()
	switch {
	case err != nil:
		r.log.Error().Err(err).Msg("Hotkey grab failed")
	case path != "":
		r.log.Debug().Str("path", path).Msg("Hotkey grab saved")
	}
}

// SetMonitoring starts or stops relaying input to the configured output.
func (r *Recorder) SetMonitoring(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if enabled {
		if err := r.enableMonitoringLocked(); err != nil {
			return err
		}
	} else {
		r.disableMonitoringLocked()
	}

	r.cfg.Monitor.Enabled = enabled
	r.saveConfigLocked()
	return nil
}

func (r *Recorder) enableMonitoringLocked() error {
	if !r.running {
		return ErrNotRunning
	}
	dev, err := r.resolveLocked(false, r.cfg.Audio.OutputDeviceID)
	if err != nil {
		return err
	}
	if err := r.rebuildMonitorLocked(dev); err != nil {
		return err
	}
	r.monitoring = true
	return nil
}

// rebuildMonitorLocked builds a new relay, pipeline and output stream, and
// only then retires the old ones.
func (r *Recorder) rebuildMonitorLocked(dev audio.Device) error {
	outFormat := dev.NativeFormat()
	mc := r.cfg.Monitor

	perChannel := max(int(r.format.SampleRate*mc.QueueSeconds), 1)
	relay, err := monitor.NewRelay(r.format.Channels, perChannel)
	if err != nil {
		return err
	}
	pipeline, err := monitor.NewPipeline(relay, r.format.SampleRate, outFormat.SampleRate, mc.FramesPerBuffer, monitor.ResamplerConfig{
		ChunkSize: mc.Resampler.ChunkSize,
		Quality:   mc.Resampler.Quality,
	}, r.log)
	if err != nil {
		return fmt.Errorf("failed to build monitor pipeline: %w", err)
	}

	stream, err := r.backend.OpenOutput(dev, outFormat, mc.FramesPerBuffer, pipeline.Fill, r.streamErrorHandler("output", dev.Name))
	if err != nil {
		return fmt.Errorf("failed to open output %s: %w", dev.Name, err)
	}

	old := r.output
	r.relay.Store(relay)
	r.output = stream
	r.outputDev = dev
	r.pipeline = pipeline
	if old != nil {
		if err := old.Close(); err != nil {
			r.log.Warn().Err(err).Msg("Failed to close previous output stream")
		}
	}

	r.log.Info().
		Str("device", dev.Name).
		Float64("in_rate", r.format.SampleRate).
		Float64("out_rate", outFormat.SampleRate).
		Bool("resampling", pipeline.Active()).
		Msg("Monitoring started")
	return nil
}

func (r *Recorder) disableMonitoringLocked() {
	relay := r.relay.Swap(nil)
	if r.output != nil {
		if err := r.output.Close(); err != nil {
			r.log.Warn().Err(err).Msg("Failed to close output stream")
		}
		r.output = nil
	}
	if relay != nil {
		relay.Clear()
	}
	r.pipeline = nil
	if r.monitoring {
		r.log.Info().Msg("Monitoring stopped")
	}
	r.monitoring = false
}

// SwitchInputDevice restarts capture on the device with the given ID.
// Buffered audio from the previous device is discarded.
func (r *Recorder) SwitchInputDevice(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.grabbing {
		return ErrAlreadyGrabbing
	}
	dev, err := r.findLocked(true, id)
	if err != nil {
		return err
	}
	if err := r.startCaptureLocked(dev); err != nil {
		r.setErrorLocked()
		return err
	}

	r.cfg.Audio.InputDeviceID = id
	r.saveConfigLocked()
	return nil
}

// SwitchOutputDevice selects the monitoring output, reopening it if
// monitoring is on.
func (r *Recorder) SwitchOutputDevice(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, err := r.findLocked(false, id)
	if err != nil {
		return err
	}
	if r.monitoring {
		if err := r.rebuildMonitorLocked(dev); err != nil {
			return err
		}
	}

	r.cfg.Audio.OutputDeviceID = id
	r.saveConfigLocked()
	return nil
}

// SetSaveDir changes where grabs are written.
func (r *Recorder) SetSaveDir(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir == "" {
		return errors.New("save directory must not be empty")
	}
	r.cfg.SaveDir = dir
	return r.cfg.Save()
}

// ApplyConfig takes over reloadable settings from a freshly loaded config.
func (r *Recorder) ApplyConfig(next *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg.SaveDir = next.SaveDir
	r.cfg.CopyPathOnSave = next.CopyPathOnSave
	r.cfg.MaxWindowSeconds = next.MaxWindowSeconds

	if next.WindowSeconds != r.cfg.WindowSeconds {
		if err := r.resizeLocked(next.WindowSeconds); err != nil {
			r.log.Warn().Err(err).Int("window_seconds", next.WindowSeconds).Msg("Window change not applied")
			return
		}
	}
	r.log.Info().Str("save_dir", r.cfg.SaveDir).Int("window_seconds", r.cfg.WindowSeconds).Msg("Config reloaded")
}

// PlotSamples returns the rolling window padded to full width, or the grab so
// far, keeping every step-th sample.
func (r *Recorder) PlotSamples(step int) []float32 {
	r.mu.Lock()
	capture := r.capture
	r.mu.Unlock()

	if capture == nil {
		return nil
	}
	return capture.SamplesForPlot(true, step)
}

func (r *Recorder) ListInputDevices() ([]audio.Device, error) {
	return r.backend.InputDevices()
}

func (r *Recorder) ListOutputDevices() ([]audio.Device, error) {
	return r.backend.OutputDevices()
}

// Shutdown saves a grab in progress, makes one more attempt at any
// recordings waiting for RetrySave and closes all streams. Recordings that
// still cannot be written are reported in the returned error.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.grabbing {
		if _, saveErr := r.endGrabLocked(r.cfg.SaveDir); saveErr != nil {
			err = fmt.Errorf("failed to save grab on shutdown: %w", saveErr)
		}
	}
	if len(r.pending) > 0 {
		if _, saveErr := r.flushPendingLocked(r.cfg.SaveDir); saveErr != nil {
			frames := 0
			for _, rec := range r.pending {
				frames += len(rec.samples) / rec.channels
			}
			r.log.Error().Err(saveErr).
				Int("recordings", len(r.pending)).
				Int("frames", frames).
				Str("dir", r.cfg.SaveDir).
				Msg("Discarding unsaved recordings on shutdown")
			err = errors.Join(err, fmt.Errorf("%d unsaved recordings lost: %w", len(r.pending), saveErr))
			r.pending = nil
		}
	}

	r.disableMonitoringLocked()
	r.closeInputLocked()
	r.running = false
	r.capture = nil

	if closeErr := r.pub.Close(); closeErr != nil {
		r.log.Warn().Err(closeErr).Msg("Failed to close publisher")
	}
	if r.status != nil {
		r.status.SetIdle()
	}
	if ctxErr := ctx.Err(); err == nil && ctxErr != nil {
		err = ctxErr
	}
	return err
}

// resolveLocked finds the configured device, or the system default when none
// is configured or the configured one has gone away.
func (r *Recorder) resolveLocked(input bool, id string) (audio.Device, error) {
	if id != "" {
		dev, err := r.findLocked(input, id)
		if !errors.Is(err, audio.ErrDeviceNotFound) {
			return dev, err
		}
		r.log.Warn().Str("device", id).Bool("input", input).Msg("Configured device missing, using default")
	}
	if input {
		return r.backend.DefaultInput()
	}
	return r.backend.DefaultOutput()
}

func (r *Recorder) findLocked(input bool, id string) (audio.Device, error) {
	var (
		devices []audio.Device
		err     error
	)
	if input {
		devices, err = r.backend.InputDevices()
	} else {
		devices, err = r.backend.OutputDevices()
	}
	if err != nil {
		return audio.Device{}, err
	}
	return audio.FindDevice(devices, id)
}

func (r *Recorder) streamErrorHandler(direction, device string) audio.ErrorCallback {
	return func(err error) {
		n := r.streamErrors.Add(1)
		r.log.Warn().Err(err).Str("direction", direction).Str("device", device).Uint64("count", n).Msg("Stream error")
	}
}

func (r *Recorder) saveConfigLocked() {
	if err := r.cfg.Save(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to save config")
	}
}

func (r *Recorder) setErrorLocked() {
	if r.status != nil {
		r.status.SetError()
	}
}
