package config

import (
	"fmt"
	"strings"

	"github.com/petems/rolling-sampler/internal/monitor"
	"github.com/rs/zerolog"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		add("log_level", c.LogLevel, "unknown log level")
	}
	if c.SaveDir == "" {
		add("save_dir", c.SaveDir, "must not be empty")
	}
	if c.MaxWindowSeconds < 1 {
		add("max_window_seconds", c.MaxWindowSeconds, "must be at least 1")
	}
	if c.WindowSeconds < 1 || (c.MaxWindowSeconds >= 1 && c.WindowSeconds > c.MaxWindowSeconds) {
		add("window_seconds", c.WindowSeconds, fmt.Sprintf("must be between 1 and %d", c.MaxWindowSeconds))
	}

	m := c.Monitor
	if m.FramesPerBuffer <= 0 {
		add("monitor.frames_per_buffer", m.FramesPerBuffer, "must be positive")
	}
	if m.QueueSeconds <= 0 {
		add("monitor.queue_seconds", m.QueueSeconds, "must be positive")
	}

	r := m.Resampler
	if r.ChunkSize != 0 && r.ChunkSize < 16 {
		add("monitor.resampler.chunk_size", r.ChunkSize, "must be 0 (derived) or at least 16")
	}
	if !monitor.ValidQuality(r.Quality) {
		add("monitor.resampler.quality", r.Quality, "must be one of "+strings.Join(monitor.Qualities(), ", "))
	}

	if c.Notify.NATSURL != "" && c.Notify.Subject == "" {
		add("notify.subject", c.Notify.Subject, "required when nats_url is set")
	}

	return errs
}
