// Package buffer accumulates bytes read from the mpv channel and hands them
// out one newline-terminated line at a time.
package buffer

import (
	"bytes"
	"errors"
	"io"
	"syscall"

	"github.com/tr1v3r/pkg/log"
)

const (
	lineDelim   = '\n'
	reserveSize = 128
	chunkSize   = 4096
)

// Buffer is a growable byte slice plus a cursor marking the start of
// unconsumed data. pos <= len(buf) always holds.
type Buffer struct {
	buf []byte
	pos int
}

func New() *Buffer { return &Buffer{buf: make([]byte, 0, reserveSize)} }

// Len returns the number of buffered bytes, consumed or not.
func (b *Buffer) Len() int { return len(b.buf) }

// Position returns the read cursor.
func (b *Buffer) Position() int { return b.pos }

// Pending returns the unconsumed bytes.
func (b *Buffer) Pending() []byte { return b.buf[b.pos:] }

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// ReadNonblocking reads everything r has available right now. A would-block
// condition ends the read without error. io.EOF is returned when r reports
// end of stream so callers can tell a closed peer from an idle one; bytes read
// before EOF stay buffered.
func (b *Buffer) ReadNonblocking(r io.Reader) error {
	var chunk [chunkSize]byte
	for {
		n, err := r.Read(chunk[:])
		if n > 0 {
			b.buf = append(b.buf, chunk[:n]...)
		}
		switch {
		case err == nil && n == 0:
			return io.EOF
		case err == nil:
			continue
		case IsWouldBlock(err):
			return nil
		default:
			return err
		}
	}
}

// ReadBlocking reads byte by byte until a line delimiter, a would-block
// condition or end of stream. The delimiter is kept so ConsumeLine sees a
// complete line. End of stream is reported as io.EOF, with any partial line
// left in the buffer.
func (b *Buffer) ReadBlocking(r io.Reader) error {
	var one [1]byte
	for {
		n, err := r.Read(one[:])
		if n == 1 {
			b.buf = append(b.buf, one[0])
			if one[0] == lineDelim {
				return nil
			}
			continue
		}
		switch {
		case err == nil, errors.Is(err, io.EOF):
			return io.EOF
		case IsWouldBlock(err):
			return nil
		default:
			return err
		}
	}
}

// ConsumeLine returns the next complete line without its delimiter and
// advances the cursor past it. It returns false, leaving the buffer
// untouched, when only a partial line is buffered. The returned slice is only
// valid until the next Shift or read.
func (b *Buffer) ConsumeLine() ([]byte, bool) {
	end := bytes.IndexByte(b.buf[b.pos:], lineDelim)
	if end < 0 {
		return nil, false
	}
	line := b.buf[b.pos : b.pos+end]
	b.pos += end + 1

	log.Debug("consumed line: %s", line)
	return line, true
}

// Shift drops the consumed prefix and resets the cursor to 0.
func (b *Buffer) Shift() {
	if b.pos == 0 {
		return
	}
	log.Debug("shifting buffer by %d bytes", b.pos)

	n := copy(b.buf, b.buf[b.pos:])
	b.buf = b.buf[:n]
	b.pos = 0
}

// IsWouldBlock reports whether err means "no data available yet" on a
// non-blocking descriptor.
func IsWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
