// Package memqueue is an in-process bounded queue backend. All message memory
// is carved out of one arena at Open; at most Capacity messages are ever in
// flight, so producers see would-block once consumers fall behind.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/torosent/mqbench/internal/backend"
)

var (
	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("memqueue: closed")
	// ErrMessageTooLarge is returned when a message exceeds the slot size.
	ErrMessageTooLarge = errors.New("memqueue: message exceeds slot size")
	// ErrShortBuffer is returned when the receive buffer cannot hold the message.
	ErrShortBuffer = errors.New("memqueue: receive buffer too small")
)

// Config sizes the queue.
type Config struct {
	Capacity       int // maximum messages in flight
	MaxMessageSize int // slot size in bytes
}

// Queue implements backend.Backend.
type Queue struct {
	capacity int
	slotSize int
	free     chan []byte
	ready    chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Open allocates the arena and fills the free list.
func Open(cfg Config) (*Queue, error) {
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("memqueue: capacity must be >= 1, got %d", cfg.Capacity)
	}
	if cfg.MaxMessageSize < 1 {
		return nil, fmt.Errorf("memqueue: max message size must be >= 1, got %d", cfg.MaxMessageSize)
	}

	q := &Queue{
		capacity: cfg.Capacity,
		slotSize: cfg.MaxMessageSize,
		free:     make(chan []byte, cfg.Capacity),
		ready:    make(chan []byte, cfg.Capacity),
		closed:   make(chan struct{}),
	}
	arena := make([]byte, cfg.Capacity*cfg.MaxMessageSize)
	for i := 0; i < cfg.Capacity; i++ {
		off := i * cfg.MaxMessageSize
		q.free <- arena[off : off+cfg.MaxMessageSize : off+cfg.MaxMessageSize]
	}
	return q, nil
}

// TrySend copies msg into a free slot and enqueues it.
func (q *Queue) TrySend(ctx context.Context, msg []byte, timeout time.Duration) error {
	if len(msg) > q.slotSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(msg), q.slotSize)
	}
	slot, err := q.take(ctx, q.free, timeout)
	if err != nil {
		return err
	}
	n := copy(slot, msg)
	// ready has room for every slot, so this never blocks.
	q.ready <- slot[:n]
	return nil
}

// TryReceive dequeues one message into buf and returns its slot to the free list.
func (q *Queue) TryReceive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	slot, err := q.take(ctx, q.ready, timeout)
	if err != nil {
		return 0, err
	}
	n := copy(buf, slot)
	short := n < len(slot)
	q.free <- slot[:cap(slot)]
	if short {
		return n, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, len(slot), len(buf))
	}
	return n, nil
}

func (q *Queue) take(ctx context.Context, ch chan []byte, timeout time.Duration) ([]byte, error) {
	select {
	case <-q.closed:
		return nil, ErrClosed
	default:
	}

	if timeout <= 0 {
		select {
		case s := <-ch:
			return s, nil
		default:
			return nil, backend.ErrWouldBlock
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s := <-ch:
		return s, nil
	case <-timer.C:
		return nil, backend.ErrWouldBlock
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, ErrClosed
	}
}

// Depth returns the number of queued messages.
func (q *Queue) Depth() int {
	return len(q.ready)
}

// Describe reports the queue's fixed attributes.
func (q *Queue) Describe() map[string]string {
	return map[string]string{
		"capacity":         strconv.Itoa(q.capacity),
		"max_message_size": strconv.Itoa(q.slotSize),
	}
}

// Close wakes blocked callers; subsequent operations fail with ErrClosed.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}
