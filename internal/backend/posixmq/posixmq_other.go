//go:build !linux

package posixmq

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Queue is unavailable on this platform.
type Queue struct{}

// Open always fails outside linux.
func Open(cfg Config, _ *zap.Logger) (*Queue, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

// SystemLimits reports no limits outside linux.
func SystemLimits() (maxMessages, messageSize int) {
	return 0, 0
}

func (*Queue) TrySend(context.Context, []byte, time.Duration) error { return ErrUnsupported }

func (*Queue) TryReceive(context.Context, []byte, time.Duration) (int, error) {
	return 0, ErrUnsupported
}

func (*Queue) Close() error { return nil }
