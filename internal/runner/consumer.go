package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/wire"
)

type consumer struct {
	id       int
	be       backend.Backend
	stats    *metrics.Stats
	recorder *metrics.LatencyRecorder
	hist     *metrics.Histogram // owned by this consumer until join
	timeout  time.Duration
	clock    func() uint64
	logger   *zap.Logger

	buf     []byte
	latency bool
}

func newConsumer(id int, be backend.Backend, stats *metrics.Stats, recorder *metrics.LatencyRecorder, opt Options) *consumer {
	return &consumer{
		id:       id,
		be:       be,
		stats:    stats,
		recorder: recorder,
		hist:     metrics.NewHistogram(),
		timeout:  opt.callTimeout(),
		clock:    opt.Clock,
		logger:   opt.Logger,
		buf:      make([]byte, opt.MessageSize),
		latency:  opt.LatencySample > 0,
	}
}

func (c *consumer) run(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := c.be.TryReceive(ctx, c.buf, c.timeout)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err == nil:
			c.stats.RecvMessages.Add(1)
			c.stats.RecvBytes.Add(uint64(n))
			c.observe(c.buf[:n])
		case backend.IsWouldBlock(err):
			c.stats.RecvWouldBlock.Add(1)
			time.Sleep(transientBackoff)
		default:
			c.stats.RecvErrors.Add(1)
			c.logger.Debug("receive failed", zap.Int("consumer", c.id), zap.Error(err))
			time.Sleep(hardBackoff)
		}
	}
}

// observe records the latency carried by msg. Messages without a header and
// send times ahead of the local clock are skipped without counting an error.
func (c *consumer) observe(msg []byte) {
	if !c.latency {
		return
	}
	h, ok := wire.Decode(msg)
	if !ok {
		return
	}
	now := c.clock()
	if h.SendTimeNs > now {
		return
	}
	latency := now - h.SendTimeNs
	c.recorder.Record(latency)
	c.hist.Record(latency)
}
