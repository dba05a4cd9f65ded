package buffer

import "sync"

// RingBuffer is a fixed-capacity circular store of interleaved samples.
// Once full, every write overwrites the oldest slot.
type RingBuffer struct {
	mu      sync.Mutex
	data    []float32
	cursor  int    // next write index
	written uint64 // samples ever written
}

// NewRingBuffer allocates capacity zeroed slots.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}
	return &RingBuffer{data: make([]float32, capacity)}, nil
}

// Write appends samples, overwriting the oldest data once the buffer is full.
// It never allocates and holds the lock for at most two copies, so it is safe
// to call from an audio callback.
func (r *RingBuffer) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.data)
	r.written += uint64(len(samples))

	// Only the last `size` samples can survive; skip the cursor past the rest
	// so it stays equal to written mod size.
	if len(samples) > size {
		skip := len(samples) - size
		r.cursor = (r.cursor + skip) % size
		samples = samples[skip:]
	}

	n := copy(r.data[r.cursor:], samples)
	if n < len(samples) {
		copy(r.data, samples[n:])
	}
	r.cursor = (r.cursor + len(samples)) % size
}

// Snapshot returns the contents in chronological order as a new slice.
// Before the buffer has filled, only the samples written so far are returned
// unless pad is set, in which case the result is zero-padded at the end to
// the full capacity.
func (r *RingBuffer) Snapshot(pad bool) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(pad)
}

// SnapshotEvery is Snapshot keeping only every step-th sample, oldest first.
// The lock is held for len/step reads rather than a full copy.
func (r *RingBuffer) SnapshotEvery(pad bool, step int) []float32 {
	if step <= 1 {
		return r.Snapshot(pad)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.data)
	start, live, n := 0, r.cursor, r.cursor
	if r.full() {
		start, live, n = r.cursor, size, size
	} else if pad {
		n = size
	}

	out := make([]float32, (n+step-1)/step)
	for i, j := 0, 0; i < live; i, j = i+step, j+1 {
		out[j] = r.data[(start+i)%size]
	}
	return out
}

// AppendTo appends the chronological contents to dst and returns it.
func (r *RingBuffer) AppendTo(dst []float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full() {
		dst = append(dst, r.data[r.cursor:]...)
		return append(dst, r.data[:r.cursor]...)
	}
	return append(dst, r.data[:r.cursor]...)
}

func (r *RingBuffer) snapshotLocked(pad bool) []float32 {
	size := len(r.data)
	if r.full() {
		out := make([]float32, 0, size)
		out = append(out, r.data[r.cursor:]...)
		return append(out, r.data[:r.cursor]...)
	}

	if pad {
		out := make([]float32, size)
		copy(out, r.data[:r.cursor])
		return out
	}

	out := make([]float32, r.cursor)
	copy(out, r.data[:r.cursor])
	return out
}

func (r *RingBuffer) full() bool {
	return r.written >= uint64(len(r.data))
}

// Cap returns the fixed capacity in samples.
func (r *RingBuffer) Cap() int { return len(r.data) }

// Len returns the number of retrievable samples, min(written, capacity).
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full() {
		return len(r.data)
	}
	return int(r.written)
}
