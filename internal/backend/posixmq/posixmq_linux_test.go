//go:build linux

package posixmq

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/torosent/mqbench/internal/backend"
)

var _ backend.Backend = (*Queue)(nil)

func openTestQueue(t *testing.T, depth, size int) *Queue {
	t.Helper()
	name := fmt.Sprintf("/mqbench_test_%d_%s", os.Getpid(), t.Name())
	q, err := Open(Config{
		Name:          sanitize(name),
		MaxMessages:   depth,
		MessageSize:   size,
		UnlinkAtStart: true,
		UnlinkAtEnd:   true,
	}, nil)
	if err != nil {
		t.Skipf("posix message queues unavailable: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func sanitize(name string) string {
	out := []byte(name)
	for i := 1; i < len(out); i++ {
		if out[i] == '/' {
			out[i] = '_'
		}
	}
	return string(out)
}

func TestRoundTrip(t *testing.T) {
	q := openTestQueue(t, 4, 64)
	ctx := context.Background()

	require.NoError(t, q.TrySend(ctx, []byte("ping"), 100*time.Millisecond))

	buf := make([]byte, q.MessageSize())
	n, err := q.TryReceive(ctx, buf, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestEmptyQueueWouldBlock(t *testing.T) {
	q := openTestQueue(t, 4, 64)
	buf := make([]byte, q.MessageSize())

	_, err := q.TryReceive(context.Background(), buf, 0)
	assert.True(t, backend.IsWouldBlock(err), "got %v", err)

	start := time.Now()
	_, err = q.TryReceive(context.Background(), buf, 30*time.Millisecond)
	assert.True(t, backend.IsWouldBlock(err), "got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFullQueueWouldBlock(t *testing.T) {
	q := openTestQueue(t, 2, 16)
	ctx := context.Background()
	depth := q.attr.MaxMsg
	for i := 0; i < depth; i++ {
		require.NoError(t, q.TrySend(ctx, []byte{byte(i)}, 0))
	}
	err := q.TrySend(ctx, []byte{0xff}, 0)
	assert.True(t, backend.IsWouldBlock(err), "got %v", err)
}

func TestOversizedMessageIsHardError(t *testing.T) {
	q := openTestQueue(t, 2, 16)
	err := q.TrySend(context.Background(), make([]byte, q.MessageSize()+1), 0)
	require.Error(t, err)
	assert.False(t, backend.IsWouldBlock(err))
	assert.ErrorIs(t, err, unix.EMSGSIZE)
}

func TestDescribe(t *testing.T) {
	q := openTestQueue(t, 2, 16)
	attrs := q.Describe()
	assert.Equal(t, q.cfg.Name, attrs["name"])
	assert.NotEmpty(t, attrs["mq_maxmsg"])
	assert.NotEmpty(t, attrs["mq_msgsize"])
}
