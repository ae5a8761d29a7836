package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	buf := make([]byte, 64)
	ok := Encode(buf, Header{Sequence: 42, SendTimeNs: 1234567890})
	require.True(t, ok)

	h, ok := Decode(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(42), h.Sequence)
	assert.Equal(t, uint64(1234567890), h.SendTimeNs)
}

func TestEncodeLeavesPayloadTail(t *testing.T) {
	buf := make([]byte, HeaderSize+4)
	copy(buf[HeaderSize:], []byte{1, 2, 3, 4})

	require.True(t, Encode(buf, Header{Sequence: 1, SendTimeNs: 2}))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[HeaderSize:])
}

func TestSmallBufferCarriesNoHeader(t *testing.T) {
	buf := make([]byte, HeaderSize-1)
	assert.False(t, Fits(len(buf)))
	assert.False(t, Encode(buf, Header{Sequence: 1}))
	assert.Equal(t, make([]byte, HeaderSize-1), buf)

	_, ok := Decode(buf)
	assert.False(t, ok)
}

func TestNowIsMonotonic(t *testing.T) {
	prev := Now()
	for i := 0; i < 1000; i++ {
		cur := Now()
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
