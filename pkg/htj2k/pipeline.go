package htj2k

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/jpfielding/exrht.go/pkg/exr"
	"github.com/jpfielding/exrht.go/pkg/util"
)

// Config tunes the codec and bounds the inputs the pipeline accepts
type Config struct {
	Levels      int // DWT decomposition levels
	BlockWidth  int // Code-block width, 0 takes it from the part compression
	BlockHeight int // Code-block height, 0 takes it from the part compression
	MaxParts    int
	MaxChannels int
}

// DefaultConfig returns the lossless HT settings
func DefaultConfig() Config {
	return Config{
		Levels:      5,
		MaxParts:    64,
		MaxChannels: 1024,
	}
}

// Stats summarizes one part
type Stats struct {
	Part        int
	Chunks      int
	RawChunks   int // compressed chunks that fell back to raw storage
	EmptyChunks int
	PackedBytes int // uncompressed bytes across chunks
	StoredBytes int // bytes written to the file
}

// Ratio returns packed bytes per stored byte
func (s Stats) Ratio() float64 {
	if s.StoredBytes == 0 {
		return 0
	}
	return float64(s.PackedBytes) / float64(s.StoredBytes)
}

// LogValue groups the stats in log records
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("part", s.Part),
		slog.Int("chunks", s.Chunks),
		slog.Int("raw", s.RawChunks),
		slog.Int("empty", s.EmptyChunks),
		slog.Int("packed", s.PackedBytes),
		slog.Int("stored", s.StoredBytes),
		slog.Float64("ratio", s.Ratio()),
	)
}

// preflight rejects parts the pipeline cannot handle and returns the baseband layout
func (c *Codec) preflight(h *exr.Header, parts, baseband int) (PixelLayout, error) {
	if h.Storage != exr.Scanline {
		return PixelLayout{}, fmt.Errorf("%w: %s storage", ErrUnsupportedInput, h.Storage)
	}
	if c.cfg.MaxChannels > 0 && len(h.Channels) > c.cfg.MaxChannels {
		return PixelLayout{}, fmt.Errorf("%w: %d channels, limit %d", ErrUnsupportedInput, len(h.Channels), c.cfg.MaxChannels)
	}
	if c.cfg.MaxParts > 0 && parts > c.cfg.MaxParts {
		return PixelLayout{}, fmt.Errorf("%w: %d parts, limit %d", ErrUnsupportedInput, parts, c.cfg.MaxParts)
	}
	if err := h.Validate(); err != nil {
		return PixelLayout{}, fmt.Errorf("%w: %w", ErrUnsupportedInput, err)
	}
	types := make([]exr.PixelType, len(h.Channels))
	for i, ch := range h.Channels {
		types[i] = ch.Type
	}
	layout, err := ComputeLayout(types, h.Width())
	if err != nil {
		return PixelLayout{}, err
	}
	if need := layout.BufferSize(h.Height()); baseband != need {
		return PixelLayout{}, fmt.Errorf("%w: baseband holds %d bytes, part needs %d", ErrUnsupportedInput, baseband, need)
	}
	return layout, nil
}

// bindChannels points every channel present in the chunk at its samples in
// the baseband; absent channels get no buffer
func bindChannels(chans []exr.CodingChannel, layout PixelLayout, baseband []byte, base int) {
	for i := range chans {
		ch := &chans[i]
		if ch.Height == 0 {
			ch.Ptr, ch.PixelStride, ch.LineStride = nil, 0, 0
			continue
		}
		ch.Ptr = layout.ChannelSlice(baseband, base, i)
		ch.PixelStride = layout.PixelStride
		ch.LineStride = layout.LineStride
	}
}

// EncodePart adds a part described by h to f and encodes the interleaved
// baseband into its chunks, one chunk at a time.
func (c *Codec) EncodePart(ctx context.Context, f *exr.File, h exr.Header, baseband []byte) (Stats, error) {
	layout, err := c.preflight(&h, f.NumParts()+1, len(baseband))
	if err != nil {
		return Stats{}, err
	}
	part, err := f.AddPart(h)
	if err != nil {
		return Stats{}, err
	}
	log := c.log.With(slog.String("part", util.HashUUID(h)))
	stats := Stats{Part: part}

	var e exr.EncodePipeline
	base := 0
	for y := h.DataWindow.MinY; y <= h.DataWindow.MaxY; y += h.LinesPerChunk() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ci, err := f.WriteChunkInfo(part, y)
		if err != nil {
			return stats, err
		}
		if !e.Active() {
			if err := e.Init(f, part, ci); err != nil {
				return stats, err
			}
			if h.Compression != exr.NoCompression {
				e.CompressFn = c.Compress
			}
		} else if err := e.Update(f, part, ci); err != nil {
			return stats, err
		}
		bindChannels(e.Channels, layout, baseband, base)

		if err := e.Run(); err != nil {
			return stats, fmt.Errorf("encode part %d at line %d: %w", part, y, err)
		}
		stored, err := f.ReadChunkInfo(part, y)
		if err != nil {
			return stats, err
		}
		stats.add(stored, h.Compression)
		base += layout.Advance(ci.Height)
	}

	log.InfoContext(ctx, "encoded part", slog.Any("stats", stats))
	return stats, nil
}

// DecodePart decodes every chunk of part into the interleaved baseband
func (c *Codec) DecodePart(ctx context.Context, f *exr.File, part int, baseband []byte) (Stats, error) {
	h, err := f.Header(part)
	if err != nil {
		return Stats{}, err
	}
	layout, err := c.preflight(&h, f.NumParts(), len(baseband))
	if err != nil {
		return Stats{}, err
	}
	log := c.log.With(slog.String("part", util.HashUUID(h)))
	stats := Stats{Part: part}

	var d exr.DecodePipeline
	base := 0
	for y := h.DataWindow.MinY; y <= h.DataWindow.MaxY; y += h.LinesPerChunk() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ci, err := f.ReadChunkInfo(part, y)
		if err != nil {
			return stats, err
		}
		if !d.Active() {
			if err := d.Init(f, part, ci); err != nil {
				return stats, err
			}
			if h.Compression != exr.NoCompression {
				d.DecompressFn = c.Decompress
			}
		} else if err := d.Update(f, part, ci); err != nil {
			return stats, err
		}
		bindChannels(d.Channels, layout, baseband, base)

		if err := d.Run(); err != nil {
			return stats, fmt.Errorf("decode part %d at line %d: %w", part, y, err)
		}
		stats.add(ci, h.Compression)
		base += layout.Advance(ci.Height)
	}

	log.InfoContext(ctx, "decoded part", slog.Any("stats", stats))
	return stats, nil
}

func (s *Stats) add(ci exr.ChunkInfo, comp exr.Compression) {
	s.Chunks++
	s.PackedBytes += ci.UnpackedSize
	s.StoredBytes += ci.PackedSize
	switch {
	case ci.PackedSize == 0:
		s.EmptyChunks++
	case comp != exr.NoCompression && ci.PackedSize == ci.UnpackedSize:
		s.RawChunks++
	}
}

// RoundTrip encodes baseband as a part of a fresh file, decodes it back and
// fails with ErrContentMismatch unless the result is identical.
func (c *Codec) RoundTrip(ctx context.Context, h exr.Header, baseband []byte) (Stats, error) {
	f := exr.NewFile()
	stats, err := c.EncodePart(ctx, f, h, baseband)
	if err != nil {
		return stats, err
	}
	decoded := make([]byte, len(baseband))
	if _, err := c.DecodePart(ctx, f, stats.Part, decoded); err != nil {
		return stats, err
	}
	if !bytes.Equal(baseband, decoded) {
		return stats, fmt.Errorf("%w: source %s, decoded %s",
			ErrContentMismatch, util.Md5ThenHex(baseband), util.Md5ThenHex(decoded))
	}
	return stats, nil
}
