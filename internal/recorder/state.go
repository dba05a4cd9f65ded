package recorder

import (
	"fmt"

	"github.com/petems/rolling-sampler/internal/audio"
)

// State summarises what the recorder is doing.
type State int

const (
	StateIdle State = iota
	StateRolling
	StateGrabbing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRolling:
		return "rolling"
	case StateGrabbing:
		return "grabbing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MonitorStats reports relay and resampler health.
type MonitorStats struct {
	Dropped     uint64
	Conversions uint64
	Failures    uint64
	Resampling  bool
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.grabbing:
		return StateGrabbing
	case r.running:
		return StateRolling
	default:
		return StateIdle
	}
}

func (r *Recorder) IsGrabbing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grabbing
}

func (r *Recorder) IsMonitoring() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.monitoring
}

// PendingCount returns how many recordings are waiting for RetrySave.
func (r *Recorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Recorder) InputDevice() audio.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputDev
}

func (r *Recorder) OutputDevice() audio.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputDev
}

// Format returns the active input format.
func (r *Recorder) Format() audio.Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

func (r *Recorder) WindowSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.WindowSeconds
}

func (r *Recorder) MaxWindowSeconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.MaxWindowSeconds
}

func (r *Recorder) SaveDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.SaveDir
}

// LastSaved returns the path of the most recent successful save.
func (r *Recorder) LastSaved() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSaved
}

// StreamErrors counts runtime errors reported by either stream.
func (r *Recorder) StreamErrors() uint64 {
	return r.streamErrors.Load()
}

func (r *Recorder) MonitorStats() MonitorStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s MonitorStats
	if relay := r.relay.Load(); relay != nil {
		s.Dropped = relay.Dropped()
	}
	if r.pipeline != nil {
		s.Conversions = r.pipeline.Conversions()
		s.Failures = r.pipeline.Failures()
		s.Resampling = r.pipeline.Active()
	}
	return s
}
