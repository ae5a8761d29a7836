// Package posixmq adapts a POSIX message queue (mq_overview(7)) to the
// benchmark backend contract. It is only functional on Linux.
package posixmq

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultName is the queue name used when none is configured.
const DefaultName = "/mq_bench"

// ErrUnsupported is returned by Open on platforms without POSIX queues.
var ErrUnsupported = errors.New("posixmq: POSIX message queues require linux")

// Config describes the queue to create.
type Config struct {
	Name          string
	MaxMessages   int  // requested mq_maxmsg, capped to the system limit
	MessageSize   int  // requested mq_msgsize, capped to the system limit
	NonBlocking   bool // open with O_NONBLOCK
	UnlinkAtStart bool
	UnlinkAtEnd   bool
}

func (c Config) validate() error {
	if !strings.HasPrefix(c.Name, "/") || len(c.Name) < 2 || strings.Contains(c.Name[1:], "/") {
		return fmt.Errorf("posixmq: name %q must be a single leading-slash component", c.Name)
	}
	if c.MaxMessages < 1 {
		return fmt.Errorf("posixmq: max messages must be >= 1, got %d", c.MaxMessages)
	}
	if c.MessageSize < 1 {
		return fmt.Errorf("posixmq: message size must be >= 1, got %d", c.MessageSize)
	}
	return nil
}
