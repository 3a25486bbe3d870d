package htj2k

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jpfielding/exrht.go/pkg/compress/jpeg2k"
	"github.com/jpfielding/exrht.go/pkg/exr"
)

// Default code-block size when neither Config nor the part compression sets one
const (
	defaultBlockWidth  = 32
	defaultBlockHeight = 128
)

// Codec transcodes chunks between packed pixels and HT chunks. Its Compress
// and Decompress methods are the pipeline callbacks. A Codec serves one
// goroutine at a time.
type Codec struct {
	cfg Config
	log *slog.Logger
	id  string
}

// NewCodec returns a codec that reports through log; a nil log uses slog.Default
func NewCodec(cfg Config, log *slog.Logger) *Codec {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Codec{
		cfg: cfg,
		log: log.With(slog.String("codec", id)),
		id:  id,
	}
}

// ID identifies the codec in log records
func (c *Codec) ID() string {
	return c.id
}

// stripeGeometry is the packed chunk seen as one stripe of words
type stripeGeometry struct {
	wordSize int
	layout   PixelLayout
	heights  []int
	offsets  []int
	gaps     []int
}

// geometry checks that every channel covers the whole chunk with the same
// word size and returns the stripe addressing for m
func geometry(chans []exr.CodingChannel, ci exr.ChunkInfo, m []ChannelMapEntry) (stripeGeometry, error) {
	if len(chans) == 0 {
		return stripeGeometry{}, fmt.Errorf("%w: chunk without channels", ErrConsistency)
	}
	wordSize := chans[0].Type.Size()
	types := make([]exr.PixelType, len(chans))
	for i, ch := range chans {
		if ch.Type.Size() != wordSize {
			return stripeGeometry{}, fmt.Errorf("%w: unsupported storage layout, channel %q is %s and %q is %s",
				ErrConsistency, ch.Name, ch.Type, chans[0].Name, chans[0].Type)
		}
		if ch.Width != ci.Width || ch.Height != ci.Height {
			return stripeGeometry{}, fmt.Errorf("%w: unsupported storage layout, channel %q is %dx%d in a %dx%d chunk",
				ErrConsistency, ch.Name, ch.Width, ch.Height, ci.Width, ci.Height)
		}
		types[i] = ch.Type
	}

	layout, err := ComputeLayout(types, ci.Width)
	if err != nil {
		return stripeGeometry{}, err
	}
	g := stripeGeometry{
		wordSize: wordSize,
		layout:   layout,
		heights:  make([]int, len(m)),
		offsets:  make([]int, len(m)),
		gaps:     make([]int, len(m)),
	}
	for c := range m {
		m[c].RasterLineOffset = layout.ByteOffsets[m[c].FileIndex] * ci.Width
		g.heights[c] = ci.Height
		g.offsets[c] = m[c].RasterLineOffset / wordSize
		g.gaps[c] = layout.LineStride / wordSize
	}
	return g, nil
}

func (c *Codec) blockSize(comp exr.Compression) (int, int) {
	w, h := c.cfg.BlockWidth, c.cfg.BlockHeight
	if w > 0 && h > 0 {
		return w, h
	}
	if s := comp.BlockSize(); s > 0 {
		return s, s
	}
	return defaultBlockWidth, defaultBlockHeight
}

// Compress writes the chunk header and codestream for e into
// e.CompressedBuffer. When they do not fit in PackedBytes it reports
// CompressedBytes equal to PackedBytes so the container stores the chunk raw.
func (c *Codec) Compress(e *exr.EncodePipeline) error {
	n := len(e.Channels)
	m, isRGB, err := BuildChannelMap(channelsOf(e.Channels), n)
	if err != nil {
		return err
	}
	g, err := geometry(e.Channels, e.Chunk, m)
	if err != nil {
		return err
	}
	if len(e.PackedBuffer) < e.PackedBytes || len(e.CompressedBuffer) < e.PackedBytes {
		return fmt.Errorf("%w: pipeline buffers shorter than %d packed bytes", ErrConsistency, e.PackedBytes)
	}
	if need := g.layout.BufferSize(e.Chunk.Height); need != e.PackedBytes {
		return fmt.Errorf("%w: chunk packs %d bytes, layout needs %d", ErrConsistency, e.PackedBytes, need)
	}

	dst := e.CompressedBuffer[:e.PackedBytes]
	hdr, err := WriteHeader(dst, m)
	if errors.Is(err, ErrCapacity) {
		c.storeRaw(e, err)
		return nil
	}
	if err != nil {
		return err
	}

	bw, bh := c.blockSize(e.Chunk.Compression)
	p := jpeg2k.DefaultStripeParams(e.Chunk.Width, e.Chunk.Height, n, 8*g.wordSize)
	p.DecompLevels = c.cfg.Levels
	p.CodeBlockWidth, p.CodeBlockHeight = bw, bh
	p.UseMCT = isRGB

	sink := NewSink(dst[hdr:])
	defer sink.Close()
	err = compressStripe(sink, p, e.PackedBuffer[:e.PackedBytes], g, c.log)
	if err != nil {
		if errors.Is(err, ErrCapacity) || sink.Overflowed() {
			c.storeRaw(e, err)
			return nil
		}
		return fmt.Errorf("chunk %d: %w", e.Chunk.Index, err)
	}

	e.CompressedBytes = hdr + sink.Size()
	c.log.Debug("compressed chunk",
		slog.Int("chunk", e.Chunk.Index),
		slog.Int("packed", e.PackedBytes),
		slog.Int("compressed", e.CompressedBytes),
		slog.Bool("rgb", isRGB))
	return nil
}

func compressStripe(sink *Sink, p jpeg2k.StripeParams, packed []byte, g stripeGeometry, log *slog.Logger) error {
	sc, err := jpeg2k.NewStripeCompressor(sink, p, log)
	if err != nil {
		return err
	}
	if err := sc.PushStripe(packed, g.wordSize, g.heights, g.offsets, g.gaps); err != nil {
		return err
	}
	return sc.Finish()
}

func (c *Codec) storeRaw(e *exr.EncodePipeline, cause error) {
	e.CompressedBytes = e.PackedBytes
	c.log.Debug("chunk stored raw",
		slog.Int("chunk", e.Chunk.Index),
		slog.Int("packed", e.PackedBytes),
		slog.Any("reason", cause))
}

// Decompress fills d.UnpackedBuffer from the chunk in d.PackedBuffer. Empty
// chunks leave it untouched and raw chunks are copied. Nothing is written when
// decoding fails.
func (c *Codec) Decompress(d *exr.DecodePipeline) error {
	packed, unpacked := d.Chunk.PackedSize, d.Chunk.UnpackedSize
	if packed == 0 {
		return nil
	}
	if len(d.PackedBuffer) < packed {
		return fmt.Errorf("%w: chunk of %d bytes in a %d byte buffer", ErrUnderflow, packed, len(d.PackedBuffer))
	}
	if len(d.UnpackedBuffer) < unpacked {
		return fmt.Errorf("%w: %d bytes to unpack into %d", ErrCapacity, unpacked, len(d.UnpackedBuffer))
	}
	if packed == unpacked {
		copy(d.UnpackedBuffer[:unpacked], d.PackedBuffer[:packed])
		return nil
	}

	src := d.PackedBuffer[:packed]
	hdr, m, err := ReadHeader(src)
	if err != nil {
		return err
	}
	n := len(d.Channels)
	if len(m) != n {
		return fmt.Errorf("%w: header maps %d components, part has %d channels", ErrConsistency, len(m), n)
	}
	if err := ValidateChannelMap(m, n); err != nil {
		return err
	}
	g, err := geometry(d.Channels, d.Chunk, m)
	if err != nil {
		return err
	}
	if need := g.layout.BufferSize(d.Chunk.Height); need != unpacked {
		return fmt.Errorf("%w: chunk unpacks %d bytes, layout needs %d", ErrConsistency, unpacked, need)
	}

	// sizes come from the codestream, so match them to the chunk before decoding allocates
	info, err := jpeg2k.ParseCodestreamHeader(src[hdr:])
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrFormat, d.Chunk.Index, err)
	}
	if err := checkCodestream(info, d.Chunk, n, 8*g.wordSize); err != nil {
		return err
	}

	sd, err := jpeg2k.NewStripeDecompressor(src[hdr:], c.log)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrFormat, d.Chunk.Index, err)
	}
	defer sd.Finish()

	if err := sd.PullStripe(d.UnpackedBuffer[:unpacked], g.wordSize, g.heights, g.offsets, g.gaps); err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrFormat, d.Chunk.Index, err)
	}
	c.log.Debug("decompressed chunk",
		slog.Int("chunk", d.Chunk.Index),
		slog.Int("packed", packed),
		slog.Int("unpacked", unpacked),
		slog.Bool("rgb", IsRGBOrder(m, channelsOf(d.Channels))))
	return nil
}

// checkCodestream matches a main header to the chunk it was stored in
func checkCodestream(info *jpeg2k.CodestreamInfo, ci exr.ChunkInfo, comps, precision int) error {
	siz := &info.SIZ
	if siz.XSiz < siz.XOsiz || siz.YSiz < siz.YOsiz || siz.Width() != ci.Width || siz.Height() != ci.Height {
		return fmt.Errorf("%w: codestream is %dx%d, chunk is %dx%d", ErrConsistency, siz.Width(), siz.Height(), ci.Width, ci.Height)
	}
	if len(siz.Components) != comps {
		return fmt.Errorf("%w: codestream has %d components, part has %d channels", ErrConsistency, len(siz.Components), comps)
	}
	for c, comp := range siz.Components {
		if comp.Precision != precision {
			return fmt.Errorf("%w: component %d is %d-bit, chunk samples are %d-bit", ErrConsistency, c, comp.Precision, precision)
		}
	}
	return nil
}

func channelsOf(cc []exr.CodingChannel) []exr.Channel {
	chans := make([]exr.Channel, len(cc))
	for i := range cc {
		chans[i] = cc[i].Channel()
	}
	return chans
}
