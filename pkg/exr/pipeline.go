package exr

import (
	"fmt"
	"slices"
)

// CodingChannel is a channel as seen by one chunk of a pipeline. The
// container fills the geometry; the caller points Ptr at the channel's first
// sample for the chunk and sets the strides between samples and rows.
type CodingChannel struct {
	Name      string
	Type      PixelType
	XSampling int
	YSampling int

	Width  int // samples per row in this chunk
	Height int // rows in this chunk, 0 when the chunk holds none of the channel's rows

	Ptr         []byte
	PixelStride int
	LineStride  int
}

// CompressFunc compresses e.PackedBuffer[:e.PackedBytes] into e.CompressedBuffer
// and reports the result size in e.CompressedBytes.
type CompressFunc func(e *EncodePipeline) error

// DecompressFunc fills d.UnpackedBuffer from the chunk bytes in d.PackedBuffer.
type DecompressFunc func(d *DecodePipeline) error

// session ties a pipeline to a part; Init activates it and Update reuses it
type session struct {
	file   *File
	part   int
	active bool
}

func (s *session) init(f *File, p int) error {
	if s.active {
		return fmt.Errorf("%w: already initialized", ErrPipeline)
	}
	if _, err := f.part(p); err != nil {
		return err
	}
	s.file, s.part, s.active = f, p, true
	return nil
}

func (s *session) update(f *File, p int) error {
	if !s.active {
		return fmt.Errorf("%w: update before init", ErrPipeline)
	}
	if f != s.file || p != s.part {
		return fmt.Errorf("%w: update switched from part %d to %d", ErrPipeline, s.part, p)
	}
	return nil
}

// channelsFor builds the coding channels of a chunk, keeping caller pointers from prev
func channelsFor(h *Header, ci ChunkInfo, prev []CodingChannel) []CodingChannel {
	chans := make([]CodingChannel, len(h.Channels))
	for i, ch := range h.Channels {
		cc := CodingChannel{
			Name:      ch.Name,
			Type:      ch.Type,
			XSampling: ch.XSampling,
			YSampling: ch.YSampling,
			Width:     ci.Width / ch.XSampling,
			Height:    sampledRows(ci.StartY, ci.Height, ch.YSampling),
		}
		if i < len(prev) {
			cc.Ptr, cc.PixelStride, cc.LineStride = prev[i].Ptr, prev[i].PixelStride, prev[i].LineStride
		}
		chans[i] = cc
	}
	return chans
}

// reach returns how many bytes of Ptr a channel's samples span
func (c *CodingChannel) reach() int {
	if c.Height == 0 || c.Width == 0 {
		return 0
	}
	return (c.Height-1)*c.LineStride + (c.Width-1)*c.PixelStride + c.Type.Size()
}

func (c *CodingChannel) check() error {
	if c.PixelStride < 0 || c.LineStride < 0 {
		return fmt.Errorf("%w: channel %q negative stride", ErrArgument, c.Name)
	}
	if need := c.reach(); need > len(c.Ptr) {
		return fmt.Errorf("%w: channel %q needs %d bytes, has %d", ErrArgument, c.Name, need, len(c.Ptr))
	}
	return nil
}

// walkPacked visits every channel row of a chunk in packed order with the
// packed byte offset of the row and the channel's row number within the chunk
func walkPacked(ci ChunkInfo, chans []CodingChannel, fn func(c *CodingChannel, packed, row int)) {
	pos := 0
	rows := make([]int, len(chans))
	for y := ci.StartY; y < ci.StartY+ci.Height; y++ {
		for i := range chans {
			c := &chans[i]
			if c.Height == 0 || mod(y, c.YSampling) != 0 {
				continue
			}
			fn(c, pos, rows[i])
			rows[i]++
			pos += c.Width * c.Type.Size()
		}
	}
}

// EncodePipeline packs caller pixels into one chunk at a time and stores the result
type EncodePipeline struct {
	Chunk    ChunkInfo
	Channels []CodingChannel

	PackedBuffer     []byte
	PackedBytes      int
	CompressedBuffer []byte
	CompressedBytes  int

	CompressFn CompressFunc

	s session
}

// Init binds the pipeline to part p and prepares it for chunk ci
func (e *EncodePipeline) Init(f *File, p int, ci ChunkInfo) error {
	if err := e.s.init(f, p); err != nil {
		return err
	}
	e.setChunk(ci)
	return nil
}

// Update moves an initialized pipeline to the next chunk of the same part
func (e *EncodePipeline) Update(f *File, p int, ci ChunkInfo) error {
	if err := e.s.update(f, p); err != nil {
		return err
	}
	e.setChunk(ci)
	return nil
}

func (e *EncodePipeline) setChunk(ci ChunkInfo) {
	h := &e.s.file.parts[e.s.part].header
	e.Chunk = ci
	e.Channels = channelsFor(h, ci, e.Channels)
	e.PackedBytes = 0
	e.CompressedBytes = 0
}

// Active reports whether Init has run
func (e *EncodePipeline) Active() bool {
	return e.s.active
}

// Run packs the chunk, compresses it and stores either the compressed or the
// packed bytes, whichever the compressor left smaller.
func (e *EncodePipeline) Run() error {
	if !e.s.active {
		return fmt.Errorf("%w: run before init", ErrPipeline)
	}
	comp := e.s.file.parts[e.s.part].header.Compression
	if comp != NoCompression && e.CompressFn == nil {
		return fmt.Errorf("%w: no compressor installed for %s", ErrPipeline, comp)
	}

	for i := range e.Channels {
		c := &e.Channels[i]
		if c.Height == 0 {
			continue
		}
		if c.Ptr == nil {
			return fmt.Errorf("%w: channel %q has no source", ErrArgument, c.Name)
		}
		if err := c.check(); err != nil {
			return err
		}
	}

	e.PackedBytes = e.Chunk.UnpackedSize
	e.PackedBuffer = grow(e.PackedBuffer, e.PackedBytes)
	walkPacked(e.Chunk, e.Channels, func(c *CodingChannel, packed, row int) {
		size := c.Type.Size()
		dst := e.PackedBuffer[packed:]
		src := c.Ptr[row*c.LineStride:]
		for x := 0; x < c.Width; x++ {
			copy(dst[x*size:(x+1)*size], src[x*c.PixelStride:])
		}
	})

	if e.PackedBytes == 0 {
		return e.s.file.WriteChunk(e.s.part, e.Chunk.Index, nil)
	}
	if comp == NoCompression {
		return e.s.file.WriteChunk(e.s.part, e.Chunk.Index, e.PackedBuffer)
	}

	e.CompressedBuffer = grow(e.CompressedBuffer, e.PackedBytes)
	e.CompressedBytes = 0
	if err := e.CompressFn(e); err != nil {
		return fmt.Errorf("compress chunk %d: %w", e.Chunk.Index, err)
	}
	if e.CompressedBytes > 0 && e.CompressedBytes < e.PackedBytes {
		return e.s.file.WriteChunk(e.s.part, e.Chunk.Index, e.CompressedBuffer[:e.CompressedBytes])
	}
	return e.s.file.WriteChunk(e.s.part, e.Chunk.Index, e.PackedBuffer)
}

// DecodePipeline reads one chunk at a time and unpacks it into caller pixels
type DecodePipeline struct {
	Chunk    ChunkInfo
	Channels []CodingChannel

	PackedBuffer   []byte
	UnpackedBuffer []byte

	DecompressFn DecompressFunc

	s session
}

// Init binds the pipeline to part p and prepares it for chunk ci
func (d *DecodePipeline) Init(f *File, p int, ci ChunkInfo) error {
	if err := d.s.init(f, p); err != nil {
		return err
	}
	d.setChunk(ci)
	return nil
}

// Update moves an initialized pipeline to the next chunk of the same part
func (d *DecodePipeline) Update(f *File, p int, ci ChunkInfo) error {
	if err := d.s.update(f, p); err != nil {
		return err
	}
	d.setChunk(ci)
	return nil
}

func (d *DecodePipeline) setChunk(ci ChunkInfo) {
	h := &d.s.file.parts[d.s.part].header
	d.Chunk = ci
	d.Channels = channelsFor(h, ci, d.Channels)
}

// Active reports whether Init has run
func (d *DecodePipeline) Active() bool {
	return d.s.active
}

// Run decompresses the chunk and unpacks it into every channel with a
// destination. A chunk stored with zero bytes leaves destinations untouched,
// as does any failure.
func (d *DecodePipeline) Run() error {
	if !d.s.active {
		return fmt.Errorf("%w: run before init", ErrPipeline)
	}
	comp := d.s.file.parts[d.s.part].header.Compression
	if comp != NoCompression && d.DecompressFn == nil {
		return fmt.Errorf("%w: no decompressor installed for %s", ErrPipeline, comp)
	}

	for i := range d.Channels {
		c := &d.Channels[i]
		if c.Height == 0 || c.Ptr == nil {
			continue
		}
		if err := c.check(); err != nil {
			return err
		}
	}

	data, err := d.s.file.ReadChunk(d.s.part, d.Chunk.Index)
	if err != nil {
		return err
	}
	d.PackedBuffer = data
	d.Chunk.PackedSize = len(data)
	if d.Chunk.PackedSize == 0 {
		return nil
	}

	d.UnpackedBuffer = grow(d.UnpackedBuffer, d.Chunk.UnpackedSize)
	if comp == NoCompression {
		if d.Chunk.PackedSize != d.Chunk.UnpackedSize {
			return fmt.Errorf("%w: chunk %d holds %d bytes, want %d", ErrCorruptChunk, d.Chunk.Index, d.Chunk.PackedSize, d.Chunk.UnpackedSize)
		}
		copy(d.UnpackedBuffer, data)
	} else if err := d.DecompressFn(d); err != nil {
		return fmt.Errorf("decompress chunk %d: %w", d.Chunk.Index, err)
	}

	walkPacked(d.Chunk, d.Channels, func(c *CodingChannel, packed, row int) {
		if c.Ptr == nil {
			return
		}
		size := c.Type.Size()
		src := d.UnpackedBuffer[packed:]
		dst := c.Ptr[row*c.LineStride:]
		for x := 0; x < c.Width; x++ {
			copy(dst[x*c.PixelStride:x*c.PixelStride+size], src[x*size:])
		}
	})
	return nil
}

// grow returns buf resized to n bytes, reusing its storage when it is large enough
func grow(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	return slices.Grow(buf[:0], n)[:n]
}

// Channel returns the container channel this coding channel was built from
func (c *CodingChannel) Channel() Channel {
	return Channel{Name: c.Name, Type: c.Type, XSampling: c.XSampling, YSampling: c.YSampling}
}
