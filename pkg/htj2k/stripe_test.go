package htj2k

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/jpfielding/exrht.go/pkg/compress/jpeg2k"
	"github.com/jpfielding/exrht.go/pkg/exr"
	"github.com/jpfielding/exrht.go/pkg/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanlinePart(comp exr.Compression, w, h, lines int, chans ...exr.Channel) exr.Header {
	return exr.Header{
		Name:              "test",
		Channels:          chans,
		DataWindow:        exr.Box2i{MaxX: w - 1, MaxY: h - 1},
		Compression:       comp,
		ScanlinesPerChunk: lines,
	}
}

func halves(names ...string) []exr.Channel {
	return named(names...)
}

func layoutOf(t *testing.T, h exr.Header) PixelLayout {
	t.Helper()
	types := make([]exr.PixelType, len(h.Channels))
	for i, ch := range h.Channels {
		types[i] = ch.Type
	}
	l, err := ComputeLayout(types, h.Width())
	require.NoError(t, err)
	return l
}

// encodeWith runs the encode pipeline over every chunk of h with fn as the compressor
func encodeWith(t *testing.T, h exr.Header, baseband []byte, fn exr.CompressFunc) (*exr.File, int) {
	t.Helper()
	f := exr.NewFile()
	p, err := f.AddPart(h)
	require.NoError(t, err)
	layout := layoutOf(t, h)

	var e exr.EncodePipeline
	base := 0
	for y := h.DataWindow.MinY; y <= h.DataWindow.MaxY; y += h.LinesPerChunk() {
		ci, err := f.WriteChunkInfo(p, y)
		require.NoError(t, err)
		if !e.Active() {
			require.NoError(t, e.Init(f, p, ci))
			e.CompressFn = fn
		} else {
			require.NoError(t, e.Update(f, p, ci))
		}
		bindChannels(e.Channels, layout, baseband, base)
		require.NoError(t, e.Run())
		base += layout.Advance(ci.Height)
	}
	return f, p
}

func randomBytes(n int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	buf := make([]byte, n)
	for i := 0; i+4 <= n; i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], rng.Uint32())
	}
	return buf
}

func chunkChannels(chans []exr.Channel, w, h int) []exr.CodingChannel {
	out := make([]exr.CodingChannel, len(chans))
	for i, ch := range chans {
		out[i] = exr.CodingChannel{Name: ch.Name, Type: ch.Type, XSampling: 1, YSampling: 1, Width: w, Height: h}
	}
	return out
}

func TestCodec_ID(t *testing.T) {
	a := NewCodec(DefaultConfig(), nil)
	b := NewCodec(DefaultConfig(), nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestCodec_BlockSize(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	w, h := c.blockSize(exr.HTJ2K256)
	assert.Equal(t, []int{128, 128}, []int{w, h})
	w, h = c.blockSize(exr.HTJ2K32)
	assert.Equal(t, []int{32, 32}, []int{w, h})
	w, h = c.blockSize(exr.NoCompression)
	assert.Equal(t, []int{32, 128}, []int{w, h})

	cfg := DefaultConfig()
	cfg.BlockWidth, cfg.BlockHeight = 64, 16
	w, h = NewCodec(cfg, nil).blockSize(exr.HTJ2K256)
	assert.Equal(t, []int{64, 16}, []int{w, h})
}

func TestCompress_HeaderAndCodestream(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	h := scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("B", "G", "R", "A")...)
	baseband, err := synth.Baseband(h, synth.Constant, 1)
	require.NoError(t, err)

	f, p := encodeWith(t, h, baseband, c.Compress)
	chunk, err := f.ReadChunk(p, 0)
	require.NoError(t, err)
	ci, err := f.ReadChunkInfo(p, 0)
	require.NoError(t, err)
	require.Less(t, len(chunk), ci.UnpackedSize)

	n, m, err := ReadHeader(chunk)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0, 3}, indices(m))

	info, err := jpeg2k.ParseCodestreamHeader(chunk[n:])
	require.NoError(t, err)
	assert.Equal(t, 16, info.SIZ.Width())
	assert.Equal(t, 8, info.SIZ.Height())
	assert.Len(t, info.SIZ.Components, 4)
	assert.Equal(t, byte(1), info.COD.MCT)
	assert.True(t, info.COD.HighThroughput())
	assert.Equal(t, 32, info.COD.CodeBlockWidth())
	require.NotNil(t, info.NLT)
	assert.Equal(t, jpeg2k.NLTSignMagnitude, info.NLT.Type)
}

func TestCompress_NoRGBSkipsColorTransform(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	h := scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("B", "G", "X", "A")...)
	baseband, err := synth.Baseband(h, synth.Constant, 1)
	require.NoError(t, err)

	f, p := encodeWith(t, h, baseband, c.Compress)
	chunk, err := f.ReadChunk(p, 0)
	require.NoError(t, err)

	n, m, err := ReadHeader(chunk)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, indices(m))
	info, err := jpeg2k.ParseCodestreamHeader(chunk[n:])
	require.NoError(t, err)
	assert.Equal(t, byte(0), info.COD.MCT)
}

func TestCompress_RandomDataFallsBackToRaw(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	chans := []exr.Channel{exr.NewChannel("X", exr.Uint), exr.NewChannel("Y", exr.Uint), exr.NewChannel("Z", exr.Uint)}
	h := scanlinePart(exr.HTJ2K32, 16, 8, 0, chans...)
	baseband := randomBytes(3*4*16*8, 3)

	var packed, compressed []int
	capture := func(e *exr.EncodePipeline) error {
		err := c.Compress(e)
		packed = append(packed, e.PackedBytes)
		compressed = append(compressed, e.CompressedBytes)
		return err
	}
	f, p := encodeWith(t, h, baseband, capture)
	require.Len(t, compressed, 1)
	assert.Equal(t, packed, compressed)

	chunk, err := f.ReadChunk(p, 0)
	require.NoError(t, err)
	assert.Len(t, chunk, packed[0])

	// raw chunks decode by copy
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 16, Height: 8, PackedSize: len(chunk), UnpackedSize: len(chunk)},
		Channels:       chunkChannels(chans, 16, 8),
		PackedBuffer:   chunk,
		UnpackedBuffer: make([]byte, len(chunk)),
	}
	require.NoError(t, c.Decompress(d))
	assert.Equal(t, chunk, d.UnpackedBuffer)
}

func TestCompress_TinyChunkFallsBackToRaw(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	h := scanlinePart(exr.HTJ2K32, 1, 1, 0, halves("Y")...)
	baseband := []byte{0x00, 0x3C}

	var got int
	f, p := encodeWith(t, h, baseband, func(e *exr.EncodePipeline) error {
		err := c.Compress(e)
		got = e.CompressedBytes
		return err
	})
	assert.Equal(t, 2, got)
	chunk, err := f.ReadChunk(p, 0)
	require.NoError(t, err)
	assert.Equal(t, baseband, chunk)
}

func TestCompress_MixedWordSizes(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	h := scanlinePart(exr.HTJ2K32, 8, 4, 0, exr.NewChannel("A", exr.Half), exr.NewChannel("Z", exr.Float))
	baseband, err := synth.Baseband(h, synth.Gradient, 1)
	require.NoError(t, err)

	_, err = c.RoundTrip(t.Context(), h, baseband)
	assert.ErrorIs(t, err, ErrConsistency)
	assert.ErrorContains(t, err, "unsupported storage layout")
}

func TestDecompress_EmptyChunkLeavesBuffer(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	out := bytes.Repeat([]byte{0xAA}, 96)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 4, Height: 4, PackedSize: 0, UnpackedSize: 96},
		Channels:       chunkChannels(halves("R", "G", "B"), 4, 4),
		UnpackedBuffer: out,
	}
	require.NoError(t, c.Decompress(d))
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 96), out)
}

func TestDecompress_CountMismatch(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	src := make([]byte, 40)
	_, err := WriteHeader(src, identityMap(2))
	require.NoError(t, err)

	out := bytes.Repeat([]byte{0x55}, 96)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 4, Height: 4, PackedSize: len(src), UnpackedSize: 96},
		Channels:       chunkChannels(halves("R", "G", "B"), 4, 4),
		PackedBuffer:   src,
		UnpackedBuffer: out,
	}
	err = c.Decompress(d)
	assert.ErrorIs(t, err, ErrConsistency)
	assert.Equal(t, bytes.Repeat([]byte{0x55}, 96), out)
}

func TestDecompress_InvalidMap(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	src := make([]byte, 40)
	_, err := WriteHeader(src, []ChannelMapEntry{{FileIndex: 0}, {FileIndex: 0}, {FileIndex: 1}})
	require.NoError(t, err)

	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 4, Height: 4, PackedSize: len(src), UnpackedSize: 96},
		Channels:       chunkChannels(halves("R", "G", "B"), 4, 4),
		PackedBuffer:   src,
		UnpackedBuffer: make([]byte, 96),
	}
	assert.ErrorIs(t, c.Decompress(d), ErrConsistency)
}

func TestDecompress_CorruptCodestream(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	src := make([]byte, HeaderSize(3)+5)
	_, err := WriteHeader(src, identityMap(3))
	require.NoError(t, err)
	copy(src[HeaderSize(3):], []byte{0xFF, 0x4F, 0xFF, 0x51, 0x00})

	out := make([]byte, 96)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 4, Height: 4, PackedSize: len(src), UnpackedSize: 96},
		Channels:       chunkChannels(halves("R", "G", "B"), 4, 4),
		PackedBuffer:   src,
		UnpackedBuffer: out,
	}
	assert.ErrorIs(t, c.Decompress(d), ErrFormat)
	assert.Equal(t, make([]byte, 96), out)
}

func TestDecompress_BadHeader(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	src := []byte{0x48, 0x54, 0, 0, 0, 0x40, 0, 1}
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 8, Height: 1, PackedSize: len(src), UnpackedSize: 16},
		Channels:       chunkChannels(halves("Y"), 8, 1),
		PackedBuffer:   src,
		UnpackedBuffer: make([]byte, 16),
	}
	assert.ErrorIs(t, c.Decompress(d), ErrUnderflow)
}

func TestDecompress_ShortPackedBuffer(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 4, Height: 1, PackedSize: 6, UnpackedSize: 8},
		Channels:       chunkChannels(halves("Y"), 4, 1),
		PackedBuffer:   make([]byte, 3),
		UnpackedBuffer: make([]byte, 8),
	}
	assert.ErrorIs(t, c.Decompress(d), ErrUnderflow)
}

// compressedChunk encodes a single chunk part and returns its stored bytes
func compressedChunk(t *testing.T, c *Codec, h exr.Header) []byte {
	t.Helper()
	baseband, err := synth.Baseband(h, synth.Constant, 1)
	require.NoError(t, err)
	f, p := encodeWith(t, h, baseband, c.Compress)
	chunk, err := f.ReadChunk(p, 0)
	require.NoError(t, err)
	ci, err := f.ReadChunkInfo(p, 0)
	require.NoError(t, err)
	require.Less(t, len(chunk), ci.UnpackedSize)
	return chunk
}

func TestDecompress_DimensionMismatch(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	chunk := compressedChunk(t, c, scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("R", "G", "B")...))

	// same byte count, transposed geometry
	out := make([]byte, 3*2*16*8)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 8, Height: 16, PackedSize: len(chunk), UnpackedSize: len(out)},
		Channels:       chunkChannels(halves("R", "G", "B"), 8, 16),
		PackedBuffer:   chunk,
		UnpackedBuffer: out,
	}
	assert.ErrorIs(t, c.Decompress(d), ErrConsistency)
	assert.Equal(t, make([]byte, len(out)), out)
}

func TestDecompress_TruncatedCodestream(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	chunk := compressedChunk(t, c, scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("R", "G", "B")...))

	cut := chunk[:len(chunk)-3]
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 16, Height: 8, PackedSize: len(cut), UnpackedSize: 3 * 2 * 16 * 8},
		Channels:       chunkChannels(halves("R", "G", "B"), 16, 8),
		PackedBuffer:   cut,
		UnpackedBuffer: make([]byte, 3*2*16*8),
	}
	assert.ErrorIs(t, c.Decompress(d), ErrFormat)
}

func TestDecompress_OversizedCodestreamRejected(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	chunk := compressedChunk(t, c, scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("R", "G", "B")...))
	n, _, err := ReadHeader(chunk)
	require.NoError(t, err)

	// SOC, SIZ marker, Lsiz and Rsiz, then Xsiz Ysiz XOsiz YOsiz XTsiz YTsiz
	siz := chunk[n+8:]
	for _, off := range []int{0, 4, 16, 20} {
		binary.BigEndian.PutUint32(siz[off:], 16384)
	}

	out := make([]byte, 3*2*16*8)
	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 16, Height: 8, PackedSize: len(chunk), UnpackedSize: len(out)},
		Channels:       chunkChannels(halves("R", "G", "B"), 16, 8),
		PackedBuffer:   chunk,
		UnpackedBuffer: out,
	}
	err = c.Decompress(d)
	assert.ErrorIs(t, err, ErrConsistency)
	assert.ErrorContains(t, err, "16384x16384")
	assert.Equal(t, make([]byte, len(out)), out)
}

func TestDecompress_PrecisionMismatch(t *testing.T) {
	c := NewCodec(DefaultConfig(), nil)
	chunk := compressedChunk(t, c, scanlinePart(exr.HTJ2K32, 16, 8, 0, halves("R", "G", "B")...))
	n, _, err := ReadHeader(chunk)
	require.NoError(t, err)

	// first component Ssiz follows the 38 byte fixed part of SIZ
	chunk[n+4+38] = 0x80 | 31

	d := &exr.DecodePipeline{
		Chunk:          exr.ChunkInfo{Width: 16, Height: 8, PackedSize: len(chunk), UnpackedSize: 3 * 2 * 16 * 8},
		Channels:       chunkChannels(halves("R", "G", "B"), 16, 8),
		PackedBuffer:   chunk,
		UnpackedBuffer: make([]byte, 3*2*16*8),
	}
	assert.ErrorIs(t, c.Decompress(d), ErrConsistency)
}
