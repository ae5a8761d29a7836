package metrics

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Counter is a monotonically increasing 64-bit counter. It supports only Add
// and Load, both safe for concurrent use. Each counter occupies its own cache
// line so workers hammering different counters do not false-share.
type Counter struct {
	v atomic.Uint64
	_ cpu.CacheLinePad
}

// Add increases the counter by delta.
func (c *Counter) Add(delta uint64) {
	c.v.Add(delta)
}

// Load returns the current value.
func (c *Counter) Load() uint64 {
	return c.v.Load()
}

// Stats aggregates the per-run message counters shared by all workers.
type Stats struct {
	SentMessages   Counter
	SentBytes      Counter
	RecvMessages   Counter
	RecvBytes      Counter
	SendErrors     Counter
	RecvErrors     Counter
	SendWouldBlock Counter
	RecvWouldBlock Counter
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot is a point-in-time read of every counter. Counters are loaded one
// at a time, so values in the same snapshot carry no causal relationship.
type Snapshot struct {
	SentMessages   uint64 `json:"sent_messages" yaml:"sent_messages"`
	SentBytes      uint64 `json:"sent_bytes" yaml:"sent_bytes"`
	RecvMessages   uint64 `json:"recv_messages" yaml:"recv_messages"`
	RecvBytes      uint64 `json:"recv_bytes" yaml:"recv_bytes"`
	SendErrors     uint64 `json:"send_errors" yaml:"send_errors"`
	RecvErrors     uint64 `json:"recv_errors" yaml:"recv_errors"`
	SendWouldBlock uint64 `json:"send_would_block" yaml:"send_would_block"`
	RecvWouldBlock uint64 `json:"recv_would_block" yaml:"recv_would_block"`
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SentMessages:   s.SentMessages.Load(),
		SentBytes:      s.SentBytes.Load(),
		RecvMessages:   s.RecvMessages.Load(),
		RecvBytes:      s.RecvBytes.Load(),
		SendErrors:     s.SendErrors.Load(),
		RecvErrors:     s.RecvErrors.Load(),
		SendWouldBlock: s.SendWouldBlock.Load(),
		RecvWouldBlock: s.RecvWouldBlock.Load(),
	}
}
