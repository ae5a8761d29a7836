package metrics

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// LatencyRecorder keeps a uniform random sample of at most capacity latency
// observations using reservoir sampling (Algorithm R). Record is safe for any
// number of concurrent callers: the index draw is a lock-free fetch-and-add
// and the lock is held only for the slot write.
type LatencyRecorder struct {
	capacity uint64
	seen     atomic.Uint64

	mu      sync.Mutex
	samples []uint64
}

// NewLatencyRecorder reserves capacity slots up front. A zero capacity
// disables sampling.
func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity < 0 {
		capacity = 0
	}
	return &LatencyRecorder{
		capacity: uint64(capacity),
		samples:  make([]uint64, 0, capacity),
	}
}

// Record offers one latency observation in nanoseconds.
func (r *LatencyRecorder) Record(valueNs uint64) {
	i := r.seen.Add(1) - 1
	if r.capacity == 0 {
		return
	}

	if i < r.capacity {
		r.mu.Lock()
		if uint64(len(r.samples)) < r.capacity {
			r.samples = append(r.samples, valueNs)
		} else if pos := rand.Uint64N(i + 1); pos < r.capacity {
			r.samples[pos] = valueNs
		}
		r.mu.Unlock()
		return
	}

	pos := rand.Uint64N(i + 1)
	if pos >= r.capacity {
		return
	}
	r.mu.Lock()
	// Early-index appends may still be in flight; a slot that does not exist
	// yet cannot be replaced.
	if pos < uint64(len(r.samples)) {
		r.samples[pos] = valueNs
	}
	r.mu.Unlock()
}

// Seen returns how many observations have been offered.
func (r *LatencyRecorder) Seen() uint64 {
	return r.seen.Load()
}

// Capacity returns the reservoir size.
func (r *LatencyRecorder) Capacity() int {
	return int(r.capacity)
}

// Len returns the number of samples currently held.
func (r *LatencyRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Samples returns a copy of the reservoir.
func (r *LatencyRecorder) Samples() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.samples))
	copy(out, r.samples)
	return out
}
