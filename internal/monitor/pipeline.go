package monitor

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// RateEpsilon is the largest rate difference treated as "same rate".
const RateEpsilon = 1e-6

// Pipeline turns relayed input into output-device blocks. Fill is meant to be
// called from a single output callback; it is not safe for concurrent use.
type Pipeline struct {
	relay     *Relay
	resampler Resampler
	channels  int
	backlog   int // per-channel cap on working and pending samples
	log       zerolog.Logger

	working [][]float32 // drained input not yet converted
	pending [][]float32 // converted output not yet played
	input   [][]float32
	silence [][]float32

	conversions atomic.Uint64
	failures    atomic.Uint64
}

// NewPipeline builds a pipeline for relay, converting inRate to outRate when
// they differ. A zero cfg.ChunkSize is derived from framesPerBuffer so that
// one conversion yields roughly one output block.
func NewPipeline(relay *Relay, inRate, outRate float64, framesPerBuffer int, cfg ResamplerConfig, log zerolog.Logger) (*Pipeline, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidRate, inRate, outRate)
	}

	var rs Resampler
	if math.Abs(inRate-outRate) > RateEpsilon {
		if cfg.ChunkSize <= 0 {
			cfg.ChunkSize = int(math.Round(float64(framesPerBuffer) * inRate / outRate))
		}
		sr, err := NewStreamResampler(inRate, outRate, relay.Channels(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build resampler: %w", err)
		}
		rs = sr
		log.Debug().
			Float64("in_rate", inRate).
			Float64("out_rate", outRate).
			Int("chunk", sr.InputFramesNext()).
			Msg("Resampling monitor output")
	}
	return NewPipelineWithResampler(relay, rs, log), nil
}

// NewPipelineWithResampler builds a pipeline around an existing resampler.
// A nil resampler makes the pipeline pass-through.
func NewPipelineWithResampler(relay *Relay, rs Resampler, log zerolog.Logger) *Pipeline {
	channels := relay.Channels()
	backlog := relay.Queue(0).Cap()
	if rs != nil {
		backlog = max(backlog, rs.InputFramesNext(), rs.OutputFramesMax())
	}

	p := &Pipeline{
		relay:     relay,
		resampler: rs,
		channels:  channels,
		backlog:   backlog,
		log:       log,
		working:   make([][]float32, channels),
		pending:   make([][]float32, channels),
		input:     make([][]float32, channels),
		silence:   make([][]float32, channels),
	}
	for ch := 0; ch < channels; ch++ {
		p.working[ch] = make([]float32, 0, backlog)
		p.pending[ch] = make([]float32, 0, backlog)
	}
	if rs != nil {
		expected := rs.OutputFramesMax() - 2
		for ch := range p.silence {
			p.silence[ch] = make([]float32, max(expected, 0))
		}
	}
	return p
}

// Active reports whether sample-rate conversion is in effect.
func (p *Pipeline) Active() bool { return p.resampler != nil }

// Conversions returns how many chunks have been fed to the resampler.
func (p *Pipeline) Conversions() uint64 { return p.conversions.Load() }

// Failures returns how many chunks were replaced with silence.
func (p *Pipeline) Failures() uint64 { return p.failures.Load() }

// Fill writes one interleaved output block of outChannels channels. Frames
// and channels with nothing to play are silent.
//
// While a resampler is active, each call converts exactly one chunk when at
// least a chunk is buffered. A shorter backlog is played unconverted at the
// input rate, so it plays slightly off pitch; the resampler only ever sees
// whole chunks.
func (p *Pipeline) Fill(out []float32, outChannels int) {
	if outChannels < 1 {
		clear(out)
		return
	}

	for ch := range p.working {
		p.working[ch] = trimOldest(p.relay.Queue(ch).DrainInto(p.working[ch]), p.backlog)
	}

	// Channels stay aligned: the shortest one decides how much moves on.
	available := shortest(p.working)

	switch {
	case p.resampler != nil && available >= p.resampler.InputFramesNext():
		chunk := p.resampler.InputFramesNext()
		for ch := range p.working {
			p.input[ch] = p.working[ch][:chunk]
		}
		produced, err := p.resampler.Process(p.input)
		p.conversions.Add(1)
		if err != nil {
			p.failures.Add(1)
			p.log.Warn().Err(err).Msg("Resampling failed, playing silence")
			produced = p.silence
		}
		for ch := range p.pending {
			p.pending[ch] = append(p.pending[ch], produced[ch]...)
		}
		p.consume(chunk)
	case available > 0:
		for ch := range p.pending {
			p.pending[ch] = append(p.pending[ch], p.working[ch][:available]...)
		}
		p.consume(available)
	}

	frames := len(out) / outChannels
	played := min(frames, shortest(p.pending))
	for f := 0; f < frames; f++ {
		base := f * outChannels
		for c := 0; c < outChannels; c++ {
			var v float32
			if c < p.channels && f < played {
				v = p.pending[c][f]
			}
			out[base+c] = v
		}
	}
	// A trailing partial frame, if any, is silent too.
	clear(out[frames*outChannels:])

	for ch := range p.pending {
		p.pending[ch] = trimOldest(dropFront(p.pending[ch], played), p.backlog)
	}
}

func (p *Pipeline) consume(n int) {
	for ch := range p.working {
		p.working[ch] = dropFront(p.working[ch], n)
	}
}

func shortest(chs [][]float32) int {
	if len(chs) == 0 {
		return 0
	}
	n := len(chs[0])
	for _, c := range chs[1:] {
		n = min(n, len(c))
	}
	return n
}

// dropFront removes the first n samples in place.
func dropFront(s []float32, n int) []float32 {
	if n <= 0 {
		return s
	}
	if n >= len(s) {
		return s[:0]
	}
	return s[:copy(s, s[n:])]
}

// trimOldest keeps at most limit samples, discarding from the front.
func trimOldest(s []float32, limit int) []float32 {
	if len(s) <= limit {
		return s
	}
	return dropFront(s, len(s)-limit)
}
