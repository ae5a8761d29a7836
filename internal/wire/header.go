// Package wire encodes the fixed-size header stamped at the front of every
// benchmark message and provides the monotonic clock used to time it.
package wire

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the encoded size of a Header in bytes.
const HeaderSize = 16

// Header carries a producer-local sequence number and the monotonic send time.
type Header struct {
	Sequence   uint64
	SendTimeNs uint64
}

// epoch anchors Now. time.Since on a value carrying a monotonic reading is
// immune to wall-clock steps.
var epoch = time.Now()

// Now returns nanoseconds elapsed on the process monotonic clock.
func Now() uint64 {
	return uint64(time.Since(epoch))
}

// Fits reports whether a payload of size n can carry a header.
func Fits(n int) bool {
	return n >= HeaderSize
}

// Encode writes h into the first HeaderSize bytes of buf. It returns false and
// leaves buf untouched when buf is too small.
func Encode(buf []byte, h Header) bool {
	if !Fits(len(buf)) {
		return false
	}
	binary.LittleEndian.PutUint64(buf[0:8], h.Sequence)
	binary.LittleEndian.PutUint64(buf[8:16], h.SendTimeNs)
	return true
}

// Decode reads a header from the front of buf.
func Decode(buf []byte) (Header, bool) {
	if !Fits(len(buf)) {
		return Header{}, false
	}
	return Header{
		Sequence:   binary.LittleEndian.Uint64(buf[0:8]),
		SendTimeNs: binary.LittleEndian.Uint64(buf[8:16]),
	}, true
}
