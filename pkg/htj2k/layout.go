package htj2k

import (
	"fmt"

	"github.com/jpfielding/exrht.go/pkg/exr"
)

// PixelLayout describes an interleaved buffer: every pixel holds each channel
// in order, packed without padding.
type PixelLayout struct {
	PixelStride int
	LineStride  int
	ByteOffsets []int // offset of each channel inside a pixel
}

// ComputeLayout derives the interleaved layout of channels with the given types and width
func ComputeLayout(types []exr.PixelType, width int) (PixelLayout, error) {
	if width < 0 {
		return PixelLayout{}, fmt.Errorf("%w: width %d", ErrConsistency, width)
	}
	l := PixelLayout{ByteOffsets: make([]int, len(types))}
	for i, t := range types {
		size := t.Size()
		if size == 0 {
			return PixelLayout{}, fmt.Errorf("%w: channel %d has %s", ErrConsistency, i, t)
		}
		l.ByteOffsets[i] = l.PixelStride
		l.PixelStride += size
	}
	l.LineStride = l.PixelStride * width
	return l, nil
}

// Advance returns how far a buffer cursor moves past a chunk of rows
func (l PixelLayout) Advance(rows int) int {
	return l.BufferSize(rows)
}

// BufferSize returns the bytes rows of the layout occupy
func (l PixelLayout) BufferSize(rows int) int {
	return l.LineStride * rows
}

// ChannelSlice returns the view of buf starting at channel ch of the pixel at base
func (l PixelLayout) ChannelSlice(buf []byte, base, ch int) []byte {
	return buf[base+l.ByteOffsets[ch]:]
}
