package jpeg2k

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrTileData is returned when a tile body does not hold the coefficients its header promises
var ErrTileData = errors.New("invalid tile data")

// TileEncoder transforms and codes the single tile of a stripe codestream.
// Coefficients are written plane by plane as zig-zag varints and the body is
// one zstd frame.
type TileEncoder struct {
	width        int
	height       int
	decompLevels int
	precision    int
	useMCT       bool
	nlt          NLType
}

// NewTileEncoder creates a tile encoder
func NewTileEncoder(width, height, decompLevels, precision int, useMCT bool, nlt NLType) *TileEncoder {
	return &TileEncoder{
		width:        width,
		height:       height,
		decompLevels: decompLevels,
		precision:    precision,
		useMCT:       useMCT,
		nlt:          nlt,
	}
}

// EncodeTile transforms planes in place and returns the coded tile body
func (te *TileEncoder) EncodeTile(planes [][]int) ([]byte, error) {
	n := te.width * te.height
	for c, p := range planes {
		if len(p) != n {
			return nil, fmt.Errorf("%w: component %d has %d samples, want %d", ErrTileData, c, len(p), n)
		}
	}

	if err := ApplyNLT(planes, te.precision, te.nlt); err != nil {
		return nil, err
	}
	if te.useMCT {
		ApplyRCT(planes)
	}
	for _, p := range planes {
		ForwardMultiLevel(p, te.width, te.height, te.decompLevels)
	}

	raw := make([]byte, 0, len(planes)*n*2)
	for _, p := range planes {
		for _, c := range p {
			raw = binary.AppendVarint(raw, int64(c))
		}
	}

	enc := zstdEncPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(raw, nil)
	zstdEncPool.Put(enc)
	return out, nil
}

// TileDecoder decodes the single tile of a stripe codestream
type TileDecoder struct {
	width        int
	height       int
	decompLevels int
	precision    int
	useMCT       bool
	nlt          NLType
}

// NewTileDecoder creates a tile decoder
func NewTileDecoder(width, height, decompLevels, precision int, useMCT bool, nlt NLType) *TileDecoder {
	return &TileDecoder{
		width:        width,
		height:       height,
		decompLevels: decompLevels,
		precision:    precision,
		useMCT:       useMCT,
		nlt:          nlt,
	}
}

// DecodeTile decodes numComps planes of reconstructed samples
func (td *TileDecoder) DecodeTile(data []byte, numComps int) ([][]int, error) {
	n := td.width * td.height
	limit := numComps * n * binary.MaxVarintLen64

	raw, err := inflate(data, limit)
	if err != nil {
		return nil, err
	}

	planes := make([][]int, numComps)
	pos := 0
	for c := range planes {
		p := make([]int, n)
		for i := range p {
			v, k := binary.Varint(raw[pos:])
			if k <= 0 {
				return nil, fmt.Errorf("%w: component %d truncated at sample %d", ErrTileData, c, i)
			}
			p[i] = int(v)
			pos += k
		}
		planes[c] = p
	}
	if pos != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTileData, len(raw)-pos)
	}

	for _, p := range planes {
		InverseMultiLevel(p, td.width, td.height, td.decompLevels)
	}
	if td.useMCT {
		ApplyInverseRCT(planes)
	}
	if err := ApplyNLT(planes, td.precision, td.nlt); err != nil {
		return nil, err
	}
	return planes, nil
}

// inflate decodes the zstd body; output grows with the data actually decoded
// and fails past limit bytes
func inflate(data []byte, limit int) ([]byte, error) {
	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTileData, err)
	}
	raw, err := io.ReadAll(io.LimitReader(dec, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTileData, err)
	}
	if len(raw) > limit {
		return nil, fmt.Errorf("%w: body inflates past %d bytes", ErrTileData, limit)
	}
	return raw, nil
}

// --- zstd pools ---

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithLowerEncoderMem(true),
	)
	if err != nil {
		panic(err)
	}
	return enc
}

func mustNewZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		panic(err)
	}
	return dec
}

var zstdEncPool = sync.Pool{
	New: func() any {
		return mustNewZstdEncoder()
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		return mustNewZstdDecoder()
	},
}
