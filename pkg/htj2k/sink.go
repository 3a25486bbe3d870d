package htj2k

import "fmt"

// Sink is a fixed capacity write target over a caller owned buffer. A write
// that does not fit fails whole and marks the sink overflowed; bytes accepted
// earlier stay in place.
type Sink struct {
	buf        []byte
	n          int
	overflowed bool
	closed     bool
}

// NewSink returns a sink whose capacity is len(buf)
func NewSink(buf []byte) *Sink {
	return &Sink{buf: buf}
}

// Write appends p or fails with ErrCapacity without writing any of it
func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) > len(s.buf)-s.n {
		s.overflowed = true
		return 0, fmt.Errorf("%w: %d byte write with %d of %d bytes free", ErrCapacity, len(p), len(s.buf)-s.n, len(s.buf))
	}
	copy(s.buf[s.n:], p)
	s.n += len(p)
	return len(p), nil
}

// Size returns the bytes written so far
func (s *Sink) Size() int {
	return s.n
}

// Cap returns the sink capacity
func (s *Sink) Cap() int {
	return len(s.buf)
}

// Overflowed reports whether any write was refused for lack of room
func (s *Sink) Overflowed() bool {
	return s.overflowed
}

// Bytes returns the written bytes, nil once closed
func (s *Sink) Bytes() []byte {
	if s.closed {
		return nil
	}
	return s.buf[:s.n]
}

// Close drops the sink's view of the buffer without touching its contents
func (s *Sink) Close() error {
	s.buf = nil
	s.closed = true
	return nil
}
