// Package natsq runs the benchmark over core NATS. All consumers share one
// queue-group subscription so each message is delivered once; producers see
// would-block while the subscription's pending buffer is at capacity.
package natsq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
)

const (
	DefaultSubject    = "mqbench"
	DefaultQueueGroup = "mqbench-consumers"
)

// ErrShortBuffer is returned when a message does not fit the receive buffer.
var ErrShortBuffer = errors.New("natsq: receive buffer too small")

// Config selects the server and subject.
type Config struct {
	URL         string
	Subject     string
	QueueGroup  string
	Capacity    int
	MessageSize int
}

// Queue implements backend.Backend, backend.Quiescer and backend.Describer.
type Queue struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	cfg      Config
	logger   *zap.Logger
	capacity int

	closeOnce sync.Once
	closeErr  error
}

// Open connects, subscribes and sizes the pending limits to the capacity.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = DefaultQueueGroup
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("natsq: capacity must be >= 1, got %d", cfg.Capacity)
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("mqbench"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrlRedacted()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("nats async error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsq: connect %s: %w", cfg.URL, err)
	}

	sub, err := nc.QueueSubscribeSync(cfg.Subject, cfg.QueueGroup)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsq: subscribe %s: %w", cfg.Subject, err)
	}
	bytesLimit := cfg.Capacity * max(cfg.MessageSize, 1)
	if err := sub.SetPendingLimits(cfg.Capacity, bytesLimit); err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsq: pending limits: %w", err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsq: flush subscription: %w", err)
	}

	logger.Info("connected to nats",
		zap.String("url", nc.ConnectedUrlRedacted()),
		zap.String("subject", cfg.Subject),
		zap.String("queue_group", cfg.QueueGroup),
		zap.Int("capacity", cfg.Capacity))

	return &Queue{nc: nc, sub: sub, cfg: cfg, logger: logger, capacity: cfg.Capacity}, nil
}

// TrySend publishes msg. Publish copies msg into the connection's write
// buffer before returning.
func (q *Queue) TrySend(_ context.Context, msg []byte, _ time.Duration) error {
	if pending, _, err := q.sub.Pending(); err == nil && pending >= q.capacity {
		return backend.ErrWouldBlock
	}
	return classify(q.nc.Publish(q.cfg.Subject, msg))
}

// TryReceive waits up to timeout for the next message on the shared
// subscription. A non-positive timeout only takes an already-delivered one.
func (q *Queue) TryReceive(_ context.Context, buf []byte, timeout time.Duration) (int, error) {
	msg, err := q.sub.NextMsg(max(timeout, 0))
	if err != nil {
		return 0, classify(err)
	}
	if len(msg.Data) > len(buf) {
		return 0, ErrShortBuffer
	}
	return copy(buf, msg.Data), nil
}

// Quiesce flushes outstanding publishes so in-flight messages reach the
// subscription before the drain phase ends.
func (q *Queue) Quiesce(ctx context.Context) error {
	return q.nc.FlushWithContext(ctx)
}

// Describe reports the subscription binding.
func (q *Queue) Describe() map[string]string {
	return map[string]string{
		"url":         q.nc.ConnectedUrlRedacted(),
		"server_id":   q.nc.ConnectedServerId(),
		"subject":     q.cfg.Subject,
		"queue_group": q.cfg.QueueGroup,
		"capacity":    strconv.Itoa(q.capacity),
	}
}

// Close unsubscribes and closes the connection.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		if err := q.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			q.closeErr = fmt.Errorf("natsq: unsubscribe: %w", err)
		}
		q.nc.Close()
	})
	return q.closeErr
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, nats.ErrReconnectBufExceeded):
		return backend.WouldBlock(err)
	default:
		return err
	}
}
