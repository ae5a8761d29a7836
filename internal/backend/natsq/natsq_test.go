package natsq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/mqbench/internal/backend"
)

var (
	_ backend.Backend   = (*Queue)(nil)
	_ backend.Quiescer  = (*Queue)(nil)
	_ backend.Describer = (*Queue)(nil)
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.True(t, backend.IsWouldBlock(classify(nats.ErrTimeout)))
	assert.True(t, backend.IsWouldBlock(classify(nats.ErrReconnectBufExceeded)))
	assert.ErrorIs(t, classify(nats.ErrTimeout), nats.ErrTimeout)

	hard := classify(nats.ErrConnectionClosed)
	assert.False(t, backend.IsWouldBlock(hard))
	assert.ErrorIs(t, hard, nats.ErrConnectionClosed)

	other := errors.New("boom")
	assert.Equal(t, other, classify(other))
}

func TestOpenRejectsZeroCapacity(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "nats://127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

// Requires a reachable server, e.g. MQBENCH_NATS_URL=nats://127.0.0.1:4222.
func TestRoundTripAgainstServer(t *testing.T) {
	url := os.Getenv("MQBENCH_NATS_URL")
	if url == "" {
		t.Skip("MQBENCH_NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q, err := Open(ctx, Config{
		URL:         url,
		Subject:     fmt.Sprintf("mqbench.test.%d", os.Getpid()),
		Capacity:    16,
		MessageSize: 64,
	}, nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.TrySend(ctx, []byte("ping"), 0))
	require.NoError(t, q.Quiesce(ctx))

	buf := make([]byte, 64)
	n, err := q.TryReceive(ctx, buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	_, err = q.TryReceive(ctx, buf, 10*time.Millisecond)
	assert.True(t, backend.IsWouldBlock(err))
}
