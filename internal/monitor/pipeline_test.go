package monitor

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityResampler passes chunks through unchanged and records every call.
type identityResampler struct {
	chunk int
	calls int
	fed   []int
	err   error
	out   [][]float32
}

func (r *identityResampler) InputFramesNext() int { return r.chunk }
func (r *identityResampler) OutputFramesMax() int { return r.chunk + 2 }

func (r *identityResampler) Process(in [][]float32) ([][]float32, error) {
	r.calls++
	r.fed = append(r.fed, len(in[0]))
	if r.err != nil {
		return nil, r.err
	}
	r.out = r.out[:0]
	for _, ch := range in {
		r.out = append(r.out, append([]float32(nil), ch...))
	}
	return r.out, nil
}

func filled(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func seq(from, to int) []float32 {
	s := make([]float32, 0, to-from)
	for i := from; i < to; i++ {
		s = append(s, float32(i))
	}
	return s
}

func TestPipelineSilenceWhenNothingQueued(t *testing.T) {
	relay, err := NewRelay(1, 44100*4)
	require.NoError(t, err)
	p, err := NewPipeline(relay, 44100, 48000, 2048, DefaultResamplerConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.True(t, p.Active())

	out := filled(2048, 1)
	require.NotPanics(t, func() { p.Fill(out, 1) })
	assert.Equal(t, make([]float32, 2048), out)
	assert.Equal(t, uint64(0), p.Conversions())
}

func TestPipelinePassThroughAtEqualRates(t *testing.T) {
	relay, err := NewRelay(2, 64)
	require.NoError(t, err)
	p, err := NewPipeline(relay, 48000, 48000, 4, DefaultResamplerConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, p.Active())

	relay.PushInterleaved([]float32{1, -1, 2, -2, 3, -3}, 2)

	out := filled(8, 9)
	p.Fill(out, 2)
	assert.Equal(t, []float32{1, -1, 2, -2, 3, -3, 0, 0}, out)
}

func TestPipelineExtraOutputChannelsAreSilent(t *testing.T) {
	relay, err := NewRelay(1, 64)
	require.NoError(t, err)
	p := NewPipelineWithResampler(relay, nil, zerolog.Nop())

	relay.PushInterleaved([]float32{1, 2}, 1)

	out := filled(6, 9)
	p.Fill(out, 3)
	assert.Equal(t, []float32{1, 0, 0, 2, 0, 0}, out)
}

func TestPipelineCarriesSurplusToNextBlock(t *testing.T) {
	relay, err := NewRelay(1, 64)
	require.NoError(t, err)
	p := NewPipelineWithResampler(relay, nil, zerolog.Nop())

	relay.PushInterleaved(seq(0, 6), 1)

	out := make([]float32, 4)
	p.Fill(out, 1)
	assert.Equal(t, []float32{0, 1, 2, 3}, out)

	p.Fill(out, 1)
	assert.Equal(t, []float32{4, 5, 0, 0}, out)
}

func TestPipelineKeepsChannelsAligned(t *testing.T) {
	relay, err := NewRelay(2, 64)
	require.NoError(t, err)
	p := NewPipelineWithResampler(relay, nil, zerolog.Nop())

	for _, s := range []float32{1, 2, 3, 4, 5} {
		relay.Queue(0).Push(s)
	}
	for _, s := range []float32{-1, -2, -3} {
		relay.Queue(1).Push(s)
	}

	out := make([]float32, 10)
	p.Fill(out, 2)
	assert.Equal(t, []float32{1, -1, 2, -2, 3, -3, 0, 0, 0, 0}, out)

	// The short channel catches up; the long one's surplus was held back.
	relay.Queue(1).Push(-4)
	relay.Queue(1).Push(-5)
	p.Fill(out, 2)
	assert.Equal(t, []float32{4, -4, 5, -5, 0, 0, 0, 0, 0, 0}, out)
}

func TestPipelineShortInputNeverConverts(t *testing.T) {
	relay, err := NewRelay(2, 64)
	require.NoError(t, err)
	rs := &identityResampler{chunk: 8}
	p := NewPipelineWithResampler(relay, rs, zerolog.Nop())

	relay.PushInterleaved(seq(0, 14), 2) // 7 frames per channel

	out := make([]float32, 32)
	p.Fill(out, 2)
	assert.Equal(t, 0, rs.calls)
	assert.Equal(t, uint64(0), p.Conversions())
	assert.Equal(t, seq(0, 14), out[:14], "short input is passed through unchanged")
}

func TestPipelineConvertsExactlyOneChunkPerBlock(t *testing.T) {
	relay, err := NewRelay(1, 64)
	require.NoError(t, err)
	rs := &identityResampler{chunk: 4}
	p := NewPipelineWithResampler(relay, rs, zerolog.Nop())

	relay.PushInterleaved(seq(0, 10), 1)

	out := make([]float32, 8)
	p.Fill(out, 1)
	assert.Equal(t, 1, rs.calls)
	assert.Equal(t, []float32{0, 1, 2, 3, 0, 0, 0, 0}, out)
	assert.Len(t, p.working[0], 6)

	p.Fill(out, 1)
	assert.Equal(t, 2, rs.calls)
	assert.Equal(t, []float32{4, 5, 6, 7, 0, 0, 0, 0}, out)

	// Two left over: below the chunk size, so they pass straight through.
	p.Fill(out, 1)
	assert.Equal(t, 2, rs.calls)
	assert.Equal(t, []float32{8, 9, 0, 0, 0, 0, 0, 0}, out)

	assert.Equal(t, []int{4, 4}, rs.fed)
	assert.Equal(t, uint64(2), p.Conversions())
}

func TestPipelineFailedChunkBecomesSilence(t *testing.T) {
	relay, err := NewRelay(1, 64)
	require.NoError(t, err)
	rs := &identityResampler{chunk: 4, err: errors.New("boom")}
	p := NewPipelineWithResampler(relay, rs, zerolog.Nop())

	relay.PushInterleaved(filled(4, 0.7), 1)

	out := filled(8, 9)
	require.NotPanics(t, func() { p.Fill(out, 1) })
	assert.Equal(t, make([]float32, 8), out)
	assert.Equal(t, uint64(1), p.Failures())
	assert.Empty(t, p.working[0], "the failed chunk is still consumed")
}

func TestPipelineBoundsBacklog(t *testing.T) {
	relay, err := NewRelay(1, 16)
	require.NoError(t, err)
	p := NewPipelineWithResampler(relay, nil, zerolog.Nop())

	out := make([]float32, 2)
	for i := 0; i < 50; i++ {
		relay.PushInterleaved(filled(16, 1), 1)
		p.Fill(out, 1)
		require.LessOrEqual(t, len(p.pending[0]), 16)
		require.LessOrEqual(t, len(p.working[0]), 16)
	}
}

func TestPipelineZeroOutputChannels(t *testing.T) {
	relay, err := NewRelay(1, 8)
	require.NoError(t, err)
	p := NewPipelineWithResampler(relay, nil, zerolog.Nop())

	out := filled(4, 3)
	p.Fill(out, 0)
	assert.Equal(t, make([]float32, 4), out)
}

func TestNewPipelineDerivesChunkFromBlock(t *testing.T) {
	relay, err := NewRelay(1, 8)
	require.NoError(t, err)
	p, err := NewPipeline(relay, 44100, 48000, 2048, ResamplerConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1882, p.resampler.InputFramesNext())

	_, err = NewPipeline(relay, 0, 48000, 2048, ResamplerConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidRate)
}
