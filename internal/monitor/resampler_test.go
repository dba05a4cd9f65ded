package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantChunk(channels, frames int, v float32) [][]float32 {
	in := make([][]float32, channels)
	for ch := range in {
		in[ch] = make([]float32, frames)
		for i := range in[ch] {
			in[ch][i] = v
		}
	}
	return in
}

func TestStreamResamplerOutputRate(t *testing.T) {
	tests := []struct {
		name    string
		in, out float64
	}{
		{name: "44.1k to 48k", in: 44100, out: 48000},
		{name: "48k to 44.1k", in: 48000, out: 44100},
		{name: "16k to 48k", in: 16000, out: 48000},
		{name: "96k to 48k", in: 96000, out: 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const chunk = 1024
			const chunks = 40
			r, err := NewStreamResampler(tt.in, tt.out, 1, ResamplerConfig{ChunkSize: chunk})
			require.NoError(t, err)

			total := 0
			for i := 0; i < chunks; i++ {
				out, err := r.Process(constantChunk(1, chunk, 0))
				require.NoError(t, err)
				total += len(out[0])
			}

			// Filter delay holds back some output; the rest tracks the ratio.
			want := float64(chunk*chunks) * tt.out / tt.in
			assert.Greater(t, float64(total), 0.9*want)
			assert.LessOrEqual(t, float64(total), want+float64(r.OutputFramesMax()))
		})
	}
}

func TestStreamResamplerPreservesDC(t *testing.T) {
	for _, rates := range [][2]float64{{44100, 48000}, {48000, 44100}} {
		r, err := NewStreamResampler(rates[0], rates[1], 2, ResamplerConfig{ChunkSize: 1024})
		require.NoError(t, err)

		// Let the filter settle before looking at the output.
		var out [][]float32
		for i := 0; i < 8; i++ {
			out, err = r.Process(constantChunk(2, 1024, 0.5))
			require.NoError(t, err)
		}
		require.NotEmpty(t, out[0])

		for ch := range out {
			for i, v := range out[ch] {
				require.InDelta(t, 0.5, v, 0.01, "rates=%v ch=%d i=%d", rates, ch, i)
			}
		}
	}
}

func TestStreamResamplerKeepsChannelsApart(t *testing.T) {
	r, err := NewStreamResampler(44100, 48000, 2, ResamplerConfig{ChunkSize: 512})
	require.NoError(t, err)

	in := [][]float32{make([]float32, 512), make([]float32, 512)}
	for i := range in[0] {
		in[0][i] = 0.25
		in[1][i] = -0.25
	}
	var out [][]float32
	for i := 0; i < 8; i++ {
		out, err = r.Process(in)
		require.NoError(t, err)
		require.Len(t, out, 2)
	}
	require.NotEmpty(t, out[0])
	require.NotEmpty(t, out[1])
	assert.InDelta(t, 0.25, out[0][len(out[0])/2], 0.01)
	assert.InDelta(t, -0.25, out[1][len(out[1])/2], 0.01)
}

func TestStreamResamplerQualities(t *testing.T) {
	assert.Equal(t, []string{"high", "low", "medium", "quick", "very_high"}, Qualities())

	for _, q := range Qualities() {
		t.Run(q, func(t *testing.T) {
			assert.True(t, ValidQuality(q))
			r, err := NewStreamResampler(44100, 48000, 1, ResamplerConfig{ChunkSize: 256, Quality: q})
			require.NoError(t, err)
			_, err = r.Process(constantChunk(1, 256, 0))
			require.NoError(t, err)
		})
	}
	assert.False(t, ValidQuality("ultra"))
}

func TestStreamResamplerRejectsBadInput(t *testing.T) {
	r, err := NewStreamResampler(44100, 48000, 2, ResamplerConfig{ChunkSize: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, r.InputFramesNext())
	assert.Equal(t, 72, r.OutputFramesMax())

	_, err = r.Process(constantChunk(1, 64, 0))
	assert.ErrorIs(t, err, ErrChannelMismatch)

	_, err = r.Process(constantChunk(2, 63, 0))
	assert.ErrorIs(t, err, ErrChunkSize)
}

func TestNewStreamResamplerValidation(t *testing.T) {
	_, err := NewStreamResampler(0, 48000, 1, ResamplerConfig{ChunkSize: 64})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = NewStreamResampler(44100, 48000, 0, ResamplerConfig{ChunkSize: 64})
	assert.ErrorIs(t, err, ErrChannelMismatch)

	_, err = NewStreamResampler(44100, 48000, 1, ResamplerConfig{})
	assert.ErrorIs(t, err, ErrChunkSize)

	_, err = NewStreamResampler(44100, 48000, 1, ResamplerConfig{ChunkSize: 64, Quality: "ultra"})
	assert.ErrorIs(t, err, ErrUnknownQuality)
}

func TestResamplerConfigDefaults(t *testing.T) {
	assert.Equal(t, DefaultQuality, ResamplerConfig{}.withDefaults().Quality)
	assert.Equal(t, "high", ResamplerConfig{Quality: "high"}.withDefaults().Quality)
	assert.Equal(t, DefaultQuality, DefaultResamplerConfig().Quality)
}
