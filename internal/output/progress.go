package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/runner"
)

// ProgressReporter renders the periodic progress line. It is driven by the
// runner's progress hook.
type ProgressReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	last    metrics.Snapshot
	lastAt  time.Duration
	printed bool
}

// NewProgressReporter creates a progress reporter writing to writer.
func NewProgressReporter(writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{writer: writer}
}

// Report prints one progress line for p. The rate is measured since the
// previous call.
func (p *ProgressReporter) Report(pr runner.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := pr.Snapshot
	window := (pr.Elapsed - p.lastAt).Seconds()
	rate := 0.0
	if window > 0 {
		rate = float64(s.RecvMessages-p.last.RecvMessages) / window
	}
	fmt.Fprintf(p.writer, "\rProgress: sent=%d recv=%d sentMiB=%.2f recvMiB=%.2f | %.1f msg/s | errors=%d",
		s.SentMessages, s.RecvMessages,
		float64(s.SentBytes)/mib, float64(s.RecvBytes)/mib,
		rate, s.SendErrors+s.RecvErrors)
	p.last = s
	p.lastAt = pr.Elapsed
	p.printed = true
}

// Finish terminates the progress line.
func (p *ProgressReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.writer)
		p.printed = false
	}
}
