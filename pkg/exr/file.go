package exr

import (
	"fmt"
	"slices"
)

// ChunkInfo is the geometry and size of one scanline chunk
type ChunkInfo struct {
	Index        int
	StartY       int
	Width        int
	Height       int
	PackedSize   int // bytes stored for the chunk
	UnpackedSize int // bytes of packed pixel data the chunk holds
	Compression  Compression
}

type part struct {
	header  Header
	chunks  [][]byte
	written []bool
}

// File holds the parts of an image and their chunk tables in memory
type File struct {
	parts []*part
}

// NewFile returns an empty file
func NewFile() *File {
	return &File{}
}

// AddPart validates h and appends a part for it, returning the part index
func (f *File) AddPart(h Header) (int, error) {
	if err := h.Validate(); err != nil {
		return -1, err
	}
	h.Channels = slices.Clone(h.Channels)
	n := h.ChunkCount()
	f.parts = append(f.parts, &part{
		header:  h,
		chunks:  make([][]byte, n),
		written: make([]bool, n),
	})
	return len(f.parts) - 1, nil
}

// NumParts returns the number of parts
func (f *File) NumParts() int {
	return len(f.parts)
}

func (f *File) part(p int) (*part, error) {
	if p < 0 || p >= len(f.parts) {
		return nil, fmt.Errorf("%w: part %d of %d", ErrArgument, p, len(f.parts))
	}
	return f.parts[p], nil
}

// Header returns a copy of a part's header
func (f *File) Header(p int) (Header, error) {
	pt, err := f.part(p)
	if err != nil {
		return Header{}, err
	}
	h := pt.header
	h.Channels = slices.Clone(h.Channels)
	return h, nil
}

// ChunkCount returns the number of chunks in a part
func (f *File) ChunkCount(p int) (int, error) {
	pt, err := f.part(p)
	if err != nil {
		return 0, err
	}
	return len(pt.chunks), nil
}

// WriteChunkInfo returns the geometry of the chunk holding scanline y, ready for encoding
func (f *File) WriteChunkInfo(p, y int) (ChunkInfo, error) {
	pt, err := f.part(p)
	if err != nil {
		return ChunkInfo{}, err
	}
	return pt.chunkInfo(y)
}

// ReadChunkInfo returns the geometry and stored size of the chunk holding scanline y
func (f *File) ReadChunkInfo(p, y int) (ChunkInfo, error) {
	pt, err := f.part(p)
	if err != nil {
		return ChunkInfo{}, err
	}
	ci, err := pt.chunkInfo(y)
	if err != nil {
		return ChunkInfo{}, err
	}
	if !pt.written[ci.Index] {
		return ChunkInfo{}, fmt.Errorf("%w: part %d chunk %d", ErrMissingChunk, p, ci.Index)
	}
	ci.PackedSize = len(pt.chunks[ci.Index])
	return ci, nil
}

func (pt *part) chunkInfo(y int) (ChunkInfo, error) {
	h := &pt.header
	if y < h.DataWindow.MinY || y > h.DataWindow.MaxY {
		return ChunkInfo{}, fmt.Errorf("%w: scanline %d outside %d..%d", ErrArgument, y, h.DataWindow.MinY, h.DataWindow.MaxY)
	}
	lines := h.LinesPerChunk()
	idx := (y - h.DataWindow.MinY) / lines
	start := h.DataWindow.MinY + idx*lines
	height := min(lines, h.DataWindow.MaxY-start+1)

	unpacked := 0
	for _, ch := range h.Channels {
		unpacked += sampledRows(start, height, ch.YSampling) * (h.Width() / ch.XSampling) * ch.Type.Size()
	}
	return ChunkInfo{
		Index:        idx,
		StartY:       start,
		Width:        h.Width(),
		Height:       height,
		UnpackedSize: unpacked,
		Compression:  h.Compression,
	}, nil
}

// WriteChunk stores a copy of data as chunk index of part p
func (f *File) WriteChunk(p, index int, data []byte) error {
	pt, err := f.part(p)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(pt.chunks) {
		return fmt.Errorf("%w: chunk %d of %d", ErrArgument, index, len(pt.chunks))
	}
	pt.chunks[index] = slices.Clone(data)
	pt.written[index] = true
	return nil
}

// ReadChunk returns the stored bytes of chunk index of part p
func (f *File) ReadChunk(p, index int) ([]byte, error) {
	pt, err := f.part(p)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pt.chunks) {
		return nil, fmt.Errorf("%w: chunk %d of %d", ErrArgument, index, len(pt.chunks))
	}
	if !pt.written[index] {
		return nil, fmt.Errorf("%w: part %d chunk %d", ErrMissingChunk, p, index)
	}
	return pt.chunks[index], nil
}

// StoredBytes sums the stored size of every written chunk of part p
func (f *File) StoredBytes(p int) (int, error) {
	pt, err := f.part(p)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, c := range pt.chunks {
		total += len(c)
	}
	return total, nil
}
