// Package redisq uses a Redis list as a bounded FIFO: producers append with
// a length-checked RPUSH script, consumers pop from the head.
package redisq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
)

// DefaultKey is the list key used when none is configured.
const DefaultKey = "mqbench:queue"

// ErrShortBuffer is returned when a popped value does not fit the buffer.
var ErrShortBuffer = errors.New("redisq: receive buffer too small")

// pushScript appends ARGV[1] unless the list already holds ARGV[2] entries.
var pushScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) >= tonumber(ARGV[2]) then
	return -1
end
return redis.call('RPUSH', KEYS[1], ARGV[1])
`)

// Config selects the server and list.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Capacity int
}

// Queue implements backend.Backend over a Redis list.
type Queue struct {
	client   redis.UniversalClient
	key      string
	capacity int
	addr     string
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open dials the server, verifies it with PING and clears the list.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisq: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisq: ping %s: %w", cfg.Addr, err)
	}
	q, err := New(ctx, client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

// New wraps an existing client. The queue owns the client and closes it.
func New(ctx context.Context, client redis.UniversalClient, cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("redisq: capacity must be >= 1, got %d", cfg.Capacity)
	}
	if err := client.Del(ctx, cfg.Key).Err(); err != nil {
		return nil, fmt.Errorf("redisq: reset %s: %w", cfg.Key, err)
	}
	logger.Info("using redis list",
		zap.String("addr", cfg.Addr),
		zap.String("key", cfg.Key),
		zap.Int("capacity", cfg.Capacity))
	return &Queue{
		client:   client,
		key:      cfg.Key,
		capacity: cfg.Capacity,
		addr:     cfg.Addr,
		logger:   logger,
	}, nil
}

// TrySend appends msg if the list is below capacity. The script runs
// atomically on the server, so the bound holds across producers. The timeout
// is not used: a full list is reported immediately.
func (q *Queue) TrySend(ctx context.Context, msg []byte, _ time.Duration) error {
	n, err := pushScript.Run(ctx, q.client, []string{q.key}, string(msg), q.capacity).Int64()
	if err != nil {
		return fmt.Errorf("redisq: push: %w", err)
	}
	if n < 0 {
		return backend.ErrWouldBlock
	}
	return nil
}

// TryReceive pops the list head. A positive timeout issues BLPOP with a
// fractional-second timeout; otherwise LPOP.
func (q *Queue) TryReceive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	var (
		val string
		err error
	)
	if timeout > 0 {
		var res []string
		res, err = q.client.Do(ctx, "blpop", q.key, blockSeconds(timeout)).StringSlice()
		if err == nil {
			if len(res) != 2 {
				return 0, fmt.Errorf("redisq: unexpected BLPOP reply %q", res)
			}
			val = res[1]
		}
	} else {
		val, err = q.client.LPop(ctx, q.key).Result()
	}
	if errors.Is(err, redis.Nil) {
		return 0, backend.WouldBlock(err)
	}
	if err != nil {
		return 0, fmt.Errorf("redisq: pop: %w", err)
	}
	if len(val) > len(buf) {
		return 0, ErrShortBuffer
	}
	return copy(buf, val), nil
}

// Describe reports the list binding.
func (q *Queue) Describe() map[string]string {
	return map[string]string{
		"addr":     q.addr,
		"key":      q.key,
		"capacity": strconv.Itoa(q.capacity),
	}
}

// Close removes the list and closes the client.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		var errs []error
		if err := q.client.Del(ctx, q.key).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redisq: delete %s: %w", q.key, err))
		}
		if err := q.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redisq: close: %w", err))
		}
		q.closeErr = errors.Join(errs...)
	})
	return q.closeErr
}

// blockSeconds renders the BLPOP timeout. go-redis's typed BLPop rounds
// anything under a second up to one, which is too coarse for op timeouts.
func blockSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
