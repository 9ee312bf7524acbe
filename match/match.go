// Package match provides frame matchers: functions that decide where one
// message ends within the bytes received so far.
//
// A Matcher is called repeatedly as bytes accumulate. It must be
// restartable (the same prefix always yields the same answer) and must not
// assume more bytes will arrive.
package match

import (
	"bytes"

	"github.com/Chevalier11/asio2/internal/protocol"
)

// Matcher reports whether buf holds a complete message and, if so, the
// index one past its last byte. end must be in (0, len(buf)] when found.
type Matcher func(buf []byte) (end int, found bool)

// Any treats whatever has been received as one message.
func Any() Matcher {
	return func(buf []byte) (int, bool) {
		if len(buf) == 0 {
			return 0, false
		}
		return len(buf), true
	}
}

// Delim splits on a single delimiter byte; the delimiter belongs to the
// message it terminates.
func Delim(d byte) Matcher {
	return func(buf []byte) (int, bool) {
		if i := bytes.IndexByte(buf, d); i >= 0 {
			return i + 1, true
		}
		return 0, false
	}
}

// String splits on a multi-byte separator such as "\r\n". An empty sep
// degrades to Any.
func String(sep string) Matcher {
	if sep == "" {
		return Any()
	}
	if len(sep) == 1 {
		return Delim(sep[0])
	}
	s := []byte(sep)
	return func(buf []byte) (int, bool) {
		if i := bytes.Index(buf, s); i >= 0 {
			return i + len(s), true
		}
		return 0, false
	}
}

// LengthPrefixed matches frames carrying a big-endian length header of
// headerSize bytes (1, 2, 4 or 8). The returned message includes the header.
// It panics on any other header size.
func LengthPrefixed(headerSize int) Matcher {
	if !protocol.ValidHeaderSize(headerSize) {
		panic(protocol.ErrHeaderSize)
	}
	return func(buf []byte) (int, bool) {
		return protocol.FrameEnd(buf, headerSize)
	}
}

// Func adapts a plain function.
func Func(fn func(buf []byte) (int, bool)) Matcher {
	return Matcher(fn)
}

// Split applies m to buf repeatedly and returns the complete messages and
// the unconsumed tail. A matcher reporting an out-of-range end stops the
// split and leaves the remaining bytes in rest.
func Split(m Matcher, buf []byte) (msgs [][]byte, rest []byte) {
	for len(buf) > 0 {
		end, found := m(buf)
		if !found || end <= 0 || end > len(buf) {
			break
		}
		msgs = append(msgs, buf[:end])
		buf = buf[end:]
	}
	return msgs, buf
}
