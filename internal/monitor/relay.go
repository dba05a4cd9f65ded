package monitor

import "sync/atomic"

// Relay moves live input from the capture callback to the output callback,
// one ChannelQueue per input channel.
type Relay struct {
	queues  []*ChannelQueue
	dropped atomic.Uint64
}

// NewRelay builds channels queues of perChannel capacity each.
func NewRelay(channels, perChannel int) (*Relay, error) {
	if channels < 1 {
		return nil, ErrChannelMismatch
	}
	r := &Relay{queues: make([]*ChannelQueue, channels)}
	for i := range r.queues {
		r.queues[i] = NewChannelQueue(perChannel)
	}
	return r, nil
}

// PushInterleaved splits an interleaved block across the channel queues. The
// block's channel count must match the relay's; mismatched blocks are ignored
// since they belong to a stream the relay was not built for.
func (r *Relay) PushInterleaved(samples []float32, channels int) {
	if channels != len(r.queues) {
		return
	}
	var dropped int
	for ch, q := range r.queues {
		dropped += q.pushStrided(samples, ch, channels)
	}
	if dropped > 0 {
		r.dropped.Add(uint64(dropped))
	}
}

// Channels returns the number of channel queues.
func (r *Relay) Channels() int { return len(r.queues) }

// Queue returns the queue for channel ch.
func (r *Relay) Queue(ch int) *ChannelQueue { return r.queues[ch] }

// Dropped returns how many samples were discarded on overflow so far.
func (r *Relay) Dropped() uint64 { return r.dropped.Load() }

// Clear empties every queue.
func (r *Relay) Clear() {
	for _, q := range r.queues {
		q.Clear()
	}
}
