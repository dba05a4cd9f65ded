package monitor

import (
	"fmt"
	"math"
	"sort"

	resampler "github.com/tphakala/go-audio-resampler"
)

// Resampler converts fixed-size chunks of planar audio between two rates.
type Resampler interface {
	// InputFramesNext is the exact per-channel length Process expects.
	InputFramesNext() int
	// OutputFramesMax is the per-channel output of one Process call once the
	// converter has settled; the pipeline sizes its buffers and silence from it.
	OutputFramesMax() int
	// Process converts one chunk. The returned slices are owned by the
	// resampler and are only valid until the next call.
	Process(in [][]float32) ([][]float32, error)
}

// DefaultQuality is used when the config names no quality preset.
const DefaultQuality = "medium"

// ResamplerConfig tunes the streaming converter.
type ResamplerConfig struct {
	ChunkSize int    // input frames per conversion
	Quality   string // a preset from Qualities
}

// DefaultResamplerConfig mirrors the defaults written to a fresh config file.
func DefaultResamplerConfig() ResamplerConfig {
	return ResamplerConfig{Quality: DefaultQuality}
}

func (c ResamplerConfig) withDefaults() ResamplerConfig {
	if c.Quality == "" {
		c.Quality = DefaultQuality
	}
	return c
}

// channelEngine converts one channel, keeping filter state across calls.
type channelEngine interface {
	Process(in []float32) ([]float32, error)
}

type engineFactory func(inRate, outRate float64) (channelEngine, error)

var engines = map[string]engineFactory{
	"quick": func(in, out float64) (channelEngine, error) {
		return resampler.NewEngineFloat32(in, out, resampler.QualityQuick)
	},
	"low": func(in, out float64) (channelEngine, error) {
		return resampler.NewEngineFloat32(in, out, resampler.QualityLow)
	},
	"medium": func(in, out float64) (channelEngine, error) {
		return resampler.NewEngineFloat32(in, out, resampler.QualityMedium)
	},
	"high": func(in, out float64) (channelEngine, error) {
		return resampler.NewEngineFloat32(in, out, resampler.QualityHigh)
	},
	"very_high": func(in, out float64) (channelEngine, error) {
		return resampler.NewEngineFloat32(in, out, resampler.QualityVeryHigh)
	},
}

// Qualities lists the accepted quality preset names.
func Qualities() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidQuality reports whether name is a known preset.
func ValidQuality(name string) bool {
	_, ok := engines[name]
	return ok
}

// StreamResampler feeds fixed-size chunks through one float32 streaming
// engine per channel. Engine output length varies by a frame or two between
// calls and is shorter while the filter fills; the pipeline absorbs both.
type StreamResampler struct {
	channels int
	chunk    int
	outMax   int
	engines  []channelEngine
	out      [][]float32
}

// NewStreamResampler builds a resampler from inRate to outRate.
func NewStreamResampler(inRate, outRate float64, channels int, cfg ResamplerConfig) (*StreamResampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidRate, inRate, outRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrChannelMismatch, channels)
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, cfg.ChunkSize)
	}
	cfg = cfg.withDefaults()
	factory, ok := engines[cfg.Quality]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuality, cfg.Quality)
	}

	r := &StreamResampler{
		channels: channels,
		chunk:    cfg.ChunkSize,
		outMax:   int(math.Ceil(float64(cfg.ChunkSize)*outRate/inRate)) + 2,
		engines:  make([]channelEngine, channels),
		out:      make([][]float32, channels),
	}
	for ch := range r.engines {
		e, err := factory(inRate, outRate)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		r.engines[ch] = e
	}
	return r, nil
}

// InputFramesNext implements Resampler.
func (r *StreamResampler) InputFramesNext() int { return r.chunk }

// OutputFramesMax implements Resampler.
func (r *StreamResampler) OutputFramesMax() int { return r.outMax }

// Process implements Resampler.
func (r *StreamResampler) Process(in [][]float32) ([][]float32, error) {
	if len(in) != r.channels {
		return nil, fmt.Errorf("%w: got %d channels, want %d", ErrChannelMismatch, len(in), r.channels)
	}
	for ch, samples := range in {
		if len(samples) != r.chunk {
			return nil, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrChunkSize, ch, len(samples), r.chunk)
		}
	}

	for ch, samples := range in {
		produced, err := r.engines[ch].Process(samples)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		r.out[ch] = produced
	}
	return r.out, nil
}
