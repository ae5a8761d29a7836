package redisq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/mqbench/internal/backend"
)

var _ backend.Backend = (*Queue)(nil)

func newMockQueue(t *testing.T, capacity int) (*Queue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	mock.ExpectDel("bench").SetVal(0)

	q, err := New(context.Background(), db, Config{Addr: "mock", Key: "bench", Capacity: capacity}, nil)
	require.NoError(t, err)
	return q, mock
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	db, _ := redismock.NewClientMock()
	_, err := New(context.Background(), db, Config{Key: "bench"}, nil)
	assert.Error(t, err)
}

func TestSendBelowCapacity(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectEvalSha(pushScript.Hash(), []string{"bench"}, "hello", 4).SetVal(int64(1))

	require.NoError(t, q.TrySend(context.Background(), []byte("hello"), time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendFullListWouldBlock(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectEvalSha(pushScript.Hash(), []string{"bench"}, "hello", 4).SetVal(int64(-1))

	err := q.TrySend(context.Background(), []byte("hello"), 0)
	assert.ErrorIs(t, err, backend.ErrWouldBlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendServerErrorIsHard(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectEvalSha(pushScript.Hash(), []string{"bench"}, "hello", 4).SetErr(errors.New("READONLY"))

	err := q.TrySend(context.Background(), []byte("hello"), 0)
	require.Error(t, err)
	assert.False(t, backend.IsWouldBlock(err))
}

func TestReceiveNonBlocking(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectLPop("bench").SetVal("payload")
	mock.ExpectLPop("bench").RedisNil()

	buf := make([]byte, 16)
	n, err := q.TryReceive(context.Background(), buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	_, err = q.TryReceive(context.Background(), buf, 0)
	assert.True(t, backend.IsWouldBlock(err))
	assert.ErrorIs(t, err, redis.Nil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiveBlockingUsesFractionalTimeout(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectDo("blpop", "bench", "0.100").SetVal([]interface{}{"bench", "payload"})
	mock.ExpectDo("blpop", "bench", "0.100").RedisNil()

	buf := make([]byte, 16)
	n, err := q.TryReceive(context.Background(), buf, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	_, err = q.TryReceive(context.Background(), buf, 100*time.Millisecond)
	assert.True(t, backend.IsWouldBlock(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiveShortBuffer(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectLPop("bench").SetVal("payload")

	_, err := q.TryReceive(context.Background(), make([]byte, 3), 0)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestCloseDeletesKey(t *testing.T) {
	q, mock := newMockQueue(t, 4)
	mock.ExpectDel("bench").SetVal(1)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDescribe(t *testing.T) {
	q, _ := newMockQueue(t, 8)
	attrs := q.Describe()
	assert.Equal(t, "bench", attrs["key"])
	assert.Equal(t, "8", attrs["capacity"])
}
