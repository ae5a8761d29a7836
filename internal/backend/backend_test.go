package backend

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWouldBlockWrapping(t *testing.T) {
	cause := errors.New("queue full")
	err := WouldBlock(cause)

	assert.True(t, IsWouldBlock(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "queue full")

	assert.True(t, IsWouldBlock(WouldBlock(nil)))
	assert.True(t, IsWouldBlock(fmt.Errorf("send: %w", ErrWouldBlock)))
	assert.False(t, IsWouldBlock(errors.New("connection reset")))
	assert.False(t, IsWouldBlock(nil))
}

func TestDeadline(t *testing.T) {
	assert.True(t, Deadline(0).IsZero())
	assert.True(t, Deadline(-time.Second).IsZero())

	before := time.Now()
	d := Deadline(100 * time.Millisecond)
	assert.True(t, d.After(before))
	assert.WithinDuration(t, before.Add(100*time.Millisecond), d, 50*time.Millisecond)
}
