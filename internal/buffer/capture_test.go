package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureBufferFreezeFull(t *testing.T) {
	cb, err := NewCaptureBuffer(5)
	require.NoError(t, err)
	assert.Equal(t, 5, cb.Capacity())

	cb.AddSamples([]float32{1, 2, 3, 4, 5})
	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{6, 7})

	got, err := cb.DrainForPersistence()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7}, got)
}

func TestCaptureBufferFreezeAfterWrap(t *testing.T) {
	cb, err := NewCaptureBuffer(3)
	require.NoError(t, err)

	cb.AddSamples([]float32{1, 2, 3, 4, 5})
	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{6})
	cb.AddSamples([]float32{7, 8})

	got, err := cb.DrainForPersistence()
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4, 5, 6, 7, 8}, got)
}

func TestCaptureBufferFreezePartial(t *testing.T) {
	cb, err := NewCaptureBuffer(10)
	require.NoError(t, err)

	cb.AddSamples([]float32{1, 2})
	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{3})

	got, err := cb.DrainForPersistence()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got, "unwritten slots must not leak into the recording")
}

func TestCaptureBufferModeTransitions(t *testing.T) {
	cb, err := NewCaptureBuffer(4)
	require.NoError(t, err)
	assert.Equal(t, Rolling, cb.Mode())

	_, err = cb.DrainForPersistence()
	assert.ErrorIs(t, err, ErrNotFrozen)

	cb.AddSamples([]float32{1, 2})
	require.NoError(t, cb.BeginFreeze())
	assert.Equal(t, Frozen, cb.Mode())

	// A second freeze must not copy the ring again.
	assert.ErrorIs(t, cb.BeginFreeze(), ErrAlreadyFrozen)
	assert.Equal(t, 2, cb.Len())

	_, err = cb.DrainForPersistence()
	require.NoError(t, err)

	_, err = cb.DrainForPersistence()
	assert.ErrorIs(t, err, ErrDrained)
}

func TestCaptureBufferRingUntouchedWhileFrozen(t *testing.T) {
	cb, err := NewCaptureBuffer(3)
	require.NoError(t, err)

	cb.AddSamples([]float32{1, 2, 3})
	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{4, 5, 6})

	assert.Equal(t, []float32{1, 2, 3}, cb.ring.Snapshot(false))
}

func TestCaptureBufferSamplesForPlot(t *testing.T) {
	cb, err := NewCaptureBuffer(4)
	require.NoError(t, err)

	cb.AddSamples([]float32{1, 2})
	assert.Equal(t, []float32{1, 2}, cb.SamplesForPlot(false, 1))
	assert.Equal(t, []float32{1, 2, 0, 0}, cb.SamplesForPlot(true, 1))

	cb.AddSamples([]float32{3, 4, 5})
	assert.Equal(t, []float32{2, 3, 4, 5}, cb.SamplesForPlot(false, 0))

	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{6, 7})
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, cb.SamplesForPlot(true, 1), "frozen log is never padded")
}

func TestCaptureBufferSamplesForPlotDecimates(t *testing.T) {
	cb, err := NewCaptureBuffer(6)
	require.NoError(t, err)

	cb.AddSamples([]float32{1, 2, 3, 4})
	assert.Equal(t, []float32{1, 3, 0}, cb.SamplesForPlot(true, 2))
	assert.Equal(t, []float32{1, 4}, cb.SamplesForPlot(false, 3))

	cb.AddSamples([]float32{5, 6, 7, 8})
	assert.Equal(t, []float32{3, 6}, cb.SamplesForPlot(true, 3), "wrapped ring starts at the oldest sample")

	require.NoError(t, cb.BeginFreeze())
	cb.AddSamples([]float32{9, 10, 11})
	assert.Equal(t, []float32{3, 7, 11}, cb.SamplesForPlot(true, 4))

	_, err = cb.DrainForPersistence()
	require.NoError(t, err)
	assert.Empty(t, cb.SamplesForPlot(true, 4))
}

// Plotting a large frozen log must not hold up the capture path.
func TestCaptureBufferPlotDoesNotBlockFrozenWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a large frozen log")
	}

	const capacity = 4 << 20
	cb, err := NewCaptureBuffer(capacity)
	require.NoError(t, err)
	cb.AddSamples(make([]float32, capacity))
	require.NoError(t, cb.BeginFreeze())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					cb.SamplesForPlot(true, 1)
				}
			}
		}()
	}

	// The log was allocated with a window of headroom, so these appends
	// never regrow it.
	block := make([]float32, 1024)
	var worst time.Duration
	for i := 0; i < 200; i++ {
		start := time.Now()
		cb.AddSamples(block)
		worst = max(worst, time.Since(start))
	}
	close(stop)
	wg.Wait()

	assert.Less(t, worst, 25*time.Millisecond, "AddSamples waited on a plot copy")
	assert.Equal(t, capacity+200*1024, cb.Len())
}

func TestCaptureBufferConcurrentWritesDuringFreeze(t *testing.T) {
	cb, err := NewCaptureBuffer(1000)
	require.NoError(t, err)

	const blocks = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float32, 8)
		for i := 0; i < blocks; i++ {
			for j := range block {
				block[j] = float32(i*len(block) + j)
			}
			cb.AddSamples(block)
		}
	}()

	require.NoError(t, cb.BeginFreeze())
	wg.Wait()

	got, err := cb.DrainForPersistence()
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// Whatever the freeze point was, the recording must be gap-free and ordered.
	for i := 1; i < len(got); i++ {
		require.Equal(t, got[i-1]+1, got[i], "discontinuity at %d", i)
	}
	assert.Equal(t, float32(blocks*8-1), got[len(got)-1])
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "rolling", Rolling.String())
	assert.Equal(t, "frozen", Frozen.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}
