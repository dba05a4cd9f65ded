package buffer

import (
	"fmt"
	"sync"
)

// Mode is the state of a CaptureBuffer.
type Mode int

const (
	// Rolling keeps only the most recent window of samples.
	Rolling Mode = iota
	// Frozen appends every sample to an unbounded log. Terminal.
	Frozen
)

func (m Mode) String() string {
	switch m {
	case Rolling:
		return "rolling"
	case Frozen:
		return "frozen"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// CaptureBuffer wraps a RingBuffer with a one-way transition into a frozen,
// append-only log. While rolling, writes go to the ring; after BeginFreeze the
// ring's chronological contents are copied once into the log and every later
// write appends to the log only.
//
// The frozen log grows without bound for as long as capture continues. Long
// frozen sessions are limited only by available memory.
type CaptureBuffer struct {
	mu      sync.Mutex
	mode    Mode
	ring    *RingBuffer
	log     []float32
	drained bool
}

// NewCaptureBuffer returns a Rolling buffer over a ring of the given capacity.
func NewCaptureBuffer(capacity int) (*CaptureBuffer, error) {
	ring, err := NewRingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &CaptureBuffer{ring: ring}, nil
}

// AddSamples routes samples to the ring while rolling and to the log once frozen.
func (c *CaptureBuffer) AddSamples(samples []float32) {
	if len(samples) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == Rolling {
		c.ring.Write(samples)
		return
	}
	if c.drained {
		return
	}
	c.log = append(c.log, samples...)
}

// BeginFreeze copies the ring's contents into the log and switches to Frozen.
// Calling it on a frozen buffer returns ErrAlreadyFrozen and copies nothing.
func (c *CaptureBuffer) BeginFreeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == Frozen {
		return ErrAlreadyFrozen
	}

	// Headroom for roughly another window of capture before the first regrow.
	c.log = c.ring.AppendTo(make([]float32, 0, 2*c.ring.Cap()))
	c.mode = Frozen
	return nil
}

// SamplesForPlot returns what an operator should see, keeping every step-th
// sample: the rolling window, zero-padded to full width when pad is set, or
// the frozen log so far. The frozen log is read after the lock is released,
// so plotting a long grab never stalls AddSamples.
func (c *CaptureBuffer) SamplesForPlot(pad bool, step int) []float32 {
	step = max(step, 1)

	c.mu.Lock()
	if c.mode == Rolling {
		c.mu.Unlock()
		return c.ring.SnapshotEvery(pad, step)
	}
	// The log is append-only: this prefix is never written again, even if a
	// later append moves the log to a new array.
	log := c.log[:len(c.log):len(c.log)]
	c.mu.Unlock()

	out := make([]float32, 0, (len(log)+step-1)/step)
	for i := 0; i < len(log); i += step {
		out = append(out, log[i])
	}
	return out
}

// DrainForPersistence hands over the frozen log and releases it. It is valid
// exactly once, and only after BeginFreeze.
func (c *CaptureBuffer) DrainForPersistence() ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != Frozen {
		return nil, ErrNotFrozen
	}
	if c.drained {
		return nil, ErrDrained
	}

	out := c.log
	c.log = nil
	c.drained = true
	return out, nil
}

// Mode reports the current state.
func (c *CaptureBuffer) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Capacity returns the rolling window size in samples.
func (c *CaptureBuffer) Capacity() int { return c.ring.Cap() }

// Len returns the number of samples currently held.
func (c *CaptureBuffer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Rolling {
		return c.ring.Len()
	}
	return len(c.log)
}
