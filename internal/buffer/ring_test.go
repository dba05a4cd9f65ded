package buffer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingBufferZeroCapacity(t *testing.T) {
	rb, err := NewRingBuffer(0)
	assert.ErrorIs(t, err, ErrZeroCapacity)
	assert.Nil(t, rb)

	_, err = NewRingBuffer(-3)
	assert.ErrorIs(t, err, ErrZeroCapacity)
}

func TestRingBufferScenarios(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		writes   [][]float32
		pad      bool
		want     []float32
	}{
		{
			name:     "wrapped past capacity",
			capacity: 5,
			writes:   [][]float32{{1, 2, 3, 4, 5, 6, 7}},
			want:     []float32{3, 4, 5, 6, 7},
		},
		{
			name:     "not yet full",
			capacity: 3,
			writes:   [][]float32{{1, 2}},
			want:     []float32{1, 2},
		},
		{
			name:     "not yet full padded",
			capacity: 3,
			writes:   [][]float32{{1, 2}},
			pad:      true,
			want:     []float32{1, 2, 0},
		},
		{
			name:     "exactly full",
			capacity: 4,
			writes:   [][]float32{{1, 2}, {3, 4}},
			want:     []float32{1, 2, 3, 4},
		},
		{
			name:     "many small writes",
			capacity: 3,
			writes:   [][]float32{{1}, {2}, {3}, {4}, {5}},
			want:     []float32{3, 4, 5},
		},
		{
			name:     "single write larger than capacity after partial fill",
			capacity: 4,
			writes:   [][]float32{{1}, {2, 3, 4, 5, 6, 7, 8, 9}},
			want:     []float32{6, 7, 8, 9},
		},
		{
			name:     "padding ignored once full",
			capacity: 2,
			writes:   [][]float32{{1, 2, 3}},
			pad:      true,
			want:     []float32{2, 3},
		},
		{
			name:     "nothing written",
			capacity: 3,
			want:     []float32{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, err := NewRingBuffer(tt.capacity)
			require.NoError(t, err)
			for _, w := range tt.writes {
				rb.Write(w)
			}
			assert.Equal(t, tt.want, rb.Snapshot(tt.pad))
		})
	}
}

func TestRingBufferMatchesTailOfInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		capacity := 1 + rng.Intn(64)
		total := rng.Intn(300)

		input := make([]float32, total)
		for i := range input {
			input[i] = rng.Float32()*2 - 1
		}

		rb, err := NewRingBuffer(capacity)
		require.NoError(t, err)

		// Feed in random-sized pieces, including empty ones.
		for pos := 0; pos < total; {
			n := rng.Intn(2 * capacity)
			if pos+n > total {
				n = total - pos
			}
			rb.Write(input[pos : pos+n])
			pos += n
		}

		keep := min(total, capacity)
		got := rb.Snapshot(false)
		require.Len(t, got, keep, "capacity=%d total=%d", capacity, total)
		assert.Equal(t, input[total-keep:], got, "capacity=%d total=%d", capacity, total)
		assert.Equal(t, keep, rb.Len())

		step := 1 + rng.Intn(5)
		var every []float32
		for i := 0; i < keep; i += step {
			every = append(every, got[i])
		}
		assert.Equal(t, every, rb.SnapshotEvery(false, step), "capacity=%d total=%d step=%d", capacity, total, step)
	}
}

func TestRingBufferEmptyWriteIsNoop(t *testing.T) {
	rb, err := NewRingBuffer(4)
	require.NoError(t, err)
	rb.Write([]float32{1, 2, 3, 4, 5})

	before := rb.Snapshot(false)
	rb.Write(nil)
	rb.Write([]float32{})

	assert.Equal(t, before, rb.Snapshot(false))
	assert.Equal(t, before, rb.Snapshot(true))
}

func TestRingBufferSnapshotIsACopy(t *testing.T) {
	rb, err := NewRingBuffer(3)
	require.NoError(t, err)
	rb.Write([]float32{1, 2, 3})

	snap := rb.Snapshot(false)
	snap[0] = 99

	assert.Equal(t, []float32{1, 2, 3}, rb.Snapshot(false))
}

func TestRingBufferAppendTo(t *testing.T) {
	rb, err := NewRingBuffer(3)
	require.NoError(t, err)
	rb.Write([]float32{1, 2, 3, 4})

	got := rb.AppendTo([]float32{-1})
	assert.Equal(t, []float32{-1, 2, 3, 4}, got)
}
