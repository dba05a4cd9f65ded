package monitor

import "sync"

// ChannelQueue is a bounded FIFO of one channel's samples. When full, pushing
// drops the oldest sample so the capture side never waits on the consumer.
type ChannelQueue struct {
	mu    sync.Mutex
	buf   []float32
	head  int // index of the oldest sample
	count int
}

// NewChannelQueue allocates a queue holding at most capacity samples.
func NewChannelQueue(capacity int) *ChannelQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelQueue{buf: make([]float32, capacity)}
}

// Push enqueues one sample, dropping the oldest if the queue is full.
func (q *ChannelQueue) Push(sample float32) {
	q.mu.Lock()
	q.pushLocked(sample)
	q.mu.Unlock()
}

// pushStrided enqueues samples[offset], samples[offset+stride], ... under a
// single lock acquisition. It returns how many samples were dropped.
func (q *ChannelQueue) pushStrided(samples []float32, offset, stride int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	for i := offset; i < len(samples); i += stride {
		if q.pushLocked(samples[i]) {
			dropped++
		}
	}
	return dropped
}

func (q *ChannelQueue) pushLocked(sample float32) (dropped bool) {
	size := len(q.buf)
	if q.count == size {
		q.head = (q.head + 1) % size
		q.count--
		dropped = true
	}
	q.buf[(q.head+q.count)%size] = sample
	q.count++
	return dropped
}

// DrainAvailable removes and returns everything queued, oldest first. It
// never blocks on the producer and returns an empty slice when idle.
func (q *ChannelQueue) DrainAvailable() []float32 {
	return q.DrainInto(make([]float32, 0, q.Len()))
}

// DrainInto is DrainAvailable appending into dst, for callers that reuse a
// working slice and must not allocate.
func (q *ChannelQueue) DrainInto(dst []float32) []float32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return dst
	}
	end := q.head + q.count
	if end <= len(q.buf) {
		dst = append(dst, q.buf[q.head:end]...)
	} else {
		dst = append(dst, q.buf[q.head:]...)
		dst = append(dst, q.buf[:end-len(q.buf)]...)
	}
	q.head = 0
	q.count = 0
	return dst
}

// Len returns the number of queued samples.
func (q *ChannelQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *ChannelQueue) Cap() int { return len(q.buf) }

// Clear discards all queued samples.
func (q *ChannelQueue) Clear() {
	q.mu.Lock()
	q.head = 0
	q.count = 0
	q.mu.Unlock()
}
