// Package backend defines the contract between the benchmark engine and a
// message transport. The engine never depends on a transport's own types;
// each transport is wrapped by an adapter in a sub-package.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWouldBlock reports a transient condition: the queue is full, empty, or
// the bounded timeout elapsed. Adapters return it (or wrap it) so callers can
// tell it apart from a hard failure with errors.Is.
var ErrWouldBlock = errors.New("backend: would block")

// Backend is a shared handle used concurrently by every producer and
// consumer. Implementations are responsible for their own synchronization.
//
// A timeout <= 0 requests a non-blocking attempt. TrySend must not retain msg
// after it returns. TryReceive copies at most len(buf) bytes into buf and
// returns the number of bytes written.
type Backend interface {
	TrySend(ctx context.Context, msg []byte, timeout time.Duration) error
	TryReceive(ctx context.Context, buf []byte, timeout time.Duration) (int, error)
	Close() error
}

// Quiescer is implemented by backends that need to settle in-flight
// asynchronous work before results are read. The context carries the grace
// deadline.
type Quiescer interface {
	Quiesce(ctx context.Context) error
}

// Describer is implemented by backends that can report their negotiated
// attributes (effective capacity, message size, flags).
type Describer interface {
	Describe() map[string]string
}

// WouldBlock wraps cause so that it matches ErrWouldBlock while keeping the
// transport's error text.
func WouldBlock(cause error) error {
	if cause == nil {
		return ErrWouldBlock
	}
	return &wouldBlockError{cause: cause}
}

type wouldBlockError struct {
	cause error
}

func (e *wouldBlockError) Error() string {
	return fmt.Sprintf("%v: %v", ErrWouldBlock, e.cause)
}

func (e *wouldBlockError) Unwrap() []error {
	return []error{ErrWouldBlock, e.cause}
}

// IsWouldBlock reports whether err is a transient condition.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

// Deadline converts a relative timeout to an absolute deadline, returning the
// zero time for non-blocking attempts.
func Deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
