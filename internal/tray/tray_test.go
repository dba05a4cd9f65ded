package tray

import (
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf8"

	"github.com/petems/rolling-sampler/internal/audio"
	"github.com/petems/rolling-sampler/internal/recorder"
	"github.com/rs/zerolog"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"grabbing", "🔴"},
		{"saving", "🟡"},
		{"recording", "🟢"},
		{"error", "⚪️"},
		{"idle", "⚫️"},
		{"unknown", "⚫️"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestWindowPresets(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  []int
	}{
		{name: "default max", limit: 60, want: []int{1, 2, 5, 10, 15, 30, 45, 60}},
		{name: "max between presets", limit: 20, want: []int{1, 2, 5, 10, 15, 20}},
		{name: "max above presets", limit: 120, want: []int{1, 2, 5, 10, 15, 30, 45, 60, 120}},
		{name: "single second", limit: 1, want: []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := windowPresets(tt.limit); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("windowPresets(%d) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}

func TestSparkline(t *testing.T) {
	t.Run("empty input is flat", func(t *testing.T) {
		if got := sparkline(nil, 4); got != "▁▁▁▁" {
			t.Errorf("sparkline(nil) = %q", got)
		}
	})

	t.Run("zero width", func(t *testing.T) {
		if got := sparkline([]float32{1}, 0); got != "" {
			t.Errorf("sparkline width 0 = %q", got)
		}
	})

	t.Run("peaks per bucket", func(t *testing.T) {
		samples := []float32{0, 0, -1, 0.2, 0.5, 0, 2, 0}
		if got := sparkline(samples, 4); got != "▁█▄█" {
			t.Errorf("sparkline = %q, want %q", got, "▁█▄█")
		}
	})

	t.Run("fewer samples than width", func(t *testing.T) {
		got := sparkline([]float32{1, 1}, 8)
		if n := utf8.RuneCountInString(got); n != 8 {
			t.Fatalf("sparkline width = %d, want 8", n)
		}
	})
}

func TestGrabTitle(t *testing.T) {
	if grabTitle(false) != "Start Grab" {
		t.Errorf("idle title = %q", grabTitle(false))
	}
	if grabTitle(true) != "Stop Grab and Save" {
		t.Errorf("grabbing title = %q", grabTitle(true))
	}
}

func TestStatusBeforeTrayIsReady(t *testing.T) {
	u := New(nil, zerolog.Nop(), "dev", "none", nil)
	if got := u.currentStatus(); got != "idle" {
		t.Fatalf("initial status = %q, want idle", got)
	}

	u.SetRecording()
	u.SetGrabbing()
	if got := u.currentStatus(); got != "grabbing" {
		t.Errorf("status = %q, want grabbing", got)
	}
	u.SetError()
	if got := u.currentStatus(); got != "error" {
		t.Errorf("status = %q, want error", got)
	}
}

func TestTooltip(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		got := tooltip(health{state: recorder.StateIdle, window: 5}, "▁▁")
		want := "Rolling sampler: idle, 5s window\n▁▁"
		if got != want {
			t.Errorf("tooltip = %q, want %q", got, want)
		}
	})

	t.Run("busy", func(t *testing.T) {
		h := health{
			state:        recorder.StateGrabbing,
			format:       audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.FormatFloat32},
			window:       10,
			pending:      2,
			lastSaved:    filepath.Join("grabs", "2024-01-02_03-04-05.wav"),
			streamErrors: 3,
			monitoring:   true,
			monitor:      recorder.MonitorStats{Dropped: 7, Conversions: 40, Failures: 1, Resampling: true},
		}
		want := "Rolling sampler: grabbing, 10s window (48000 Hz, 2 ch, f32)\n" +
			"▁\n" +
			"Last saved: 2024-01-02_03-04-05.wav\n" +
			"Unsaved recordings: 2\n" +
			"Stream errors: 3\n" +
			"Monitor: resampling, 40 chunks, 1 failed, 7 dropped"
		if got := tooltip(h, "▁"); got != want {
			t.Errorf("tooltip = %q, want %q", got, want)
		}
	})

	t.Run("pass-through monitor", func(t *testing.T) {
		h := health{state: recorder.StateRolling, window: 5, monitoring: true}
		want := "Rolling sampler: rolling, 5s window\n\nMonitor: pass-through, 0 dropped"
		if got := tooltip(h, ""); got != want {
			t.Errorf("tooltip = %q, want %q", got, want)
		}
	})
}

func TestRetryTitle(t *testing.T) {
	if got := retryTitle(1); got != "Retry Save" {
		t.Errorf("retryTitle(1) = %q", got)
	}
	if got := retryTitle(3); got != "Retry Save (3)" {
		t.Errorf("retryTitle(3) = %q", got)
	}
}

func TestSaveDirPresets(t *testing.T) {
	home := filepath.Join("home", "sam")
	presets := []string{
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Music"),
		filepath.Join(home, "Documents"),
	}

	tests := []struct {
		name    string
		current string
		want    []string
	}{
		{name: "current is a preset", current: filepath.Join(home, "Music"), want: presets},
		{name: "custom folder is offered", current: "/data/grabs", want: append(append([]string(nil), presets...), "/data/grabs")},
		{name: "nothing configured", current: "", want: presets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := saveDirPresets(home, tt.current); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("saveDirPresets(%q) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}
