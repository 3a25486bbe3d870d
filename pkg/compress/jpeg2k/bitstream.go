package jpeg2k

import (
	"bufio"
	"io"
)

// ByteReader provides raw byte access with buffering
type ByteReader struct {
	r *bufio.Reader
}

// NewByteReader creates a new byte reader
func NewByteReader(r io.Reader) *ByteReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ByteReader{r: br}
}

// ReadByte reads a single byte
func (b *ByteReader) ReadByte() (byte, error) {
	return b.r.ReadByte()
}

// ReadUint16 reads a big-endian uint16
func (b *ByteReader) ReadUint16() (uint16, error) {
	hi, err := b.r.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := b.r.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadUint32 reads a big-endian uint32
func (b *ByteReader) ReadUint32() (uint32, error) {
	var val uint32
	for i := 0; i < 4; i++ {
		c, err := b.r.ReadByte()
		if err != nil {
			return 0, err
		}
		val = (val << 8) | uint32(c)
	}
	return val, nil
}

// ReadBytes reads n bytes
func (b *ByteReader) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	_, err := io.ReadFull(b.r, data)
	return data, err
}

// Skip discards n bytes
func (b *ByteReader) Skip(n int) error {
	if n < 0 {
		return io.ErrUnexpectedEOF
	}
	_, err := b.r.Discard(n)
	return err
}

// Rest returns everything left in the stream
func (b *ByteReader) Rest() ([]byte, error) {
	return io.ReadAll(b.r)
}

// ByteWriter provides raw byte access with buffering
type ByteWriter struct {
	w *bufio.Writer
}

// NewByteWriter creates a new byte writer
func NewByteWriter(w io.Writer) *ByteWriter {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &ByteWriter{w: bw}
}

// WriteByte writes a single byte
func (b *ByteWriter) WriteByte(c byte) error {
	return b.w.WriteByte(c)
}

// WriteUint16 writes a big-endian uint16
func (b *ByteWriter) WriteUint16(v uint16) error {
	if err := b.w.WriteByte(byte(v >> 8)); err != nil {
		return err
	}
	return b.w.WriteByte(byte(v))
}

// WriteUint32 writes a big-endian uint32
func (b *ByteWriter) WriteUint32(v uint32) error {
	for i := 24; i >= 0; i -= 8 {
		if err := b.w.WriteByte(byte(v >> i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteBytes writes multiple bytes
func (b *ByteWriter) WriteBytes(data []byte) error {
	_, err := b.w.Write(data)
	return err
}

// Write lets entropy coders stream straight into the codestream
func (b *ByteWriter) Write(p []byte) (int, error) {
	return b.w.Write(p)
}

// Flush flushes the buffer
func (b *ByteWriter) Flush() error {
	return b.w.Flush()
}
