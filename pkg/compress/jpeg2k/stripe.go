package jpeg2k

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
)

// maxStripeSamples bounds the samples a decompressor will allocate for one codestream
const maxStripeSamples = 1 << 28

// StripeCompressor accepts rows of samples through PushStripe and writes a
// complete codestream to its writer. The main header goes out at construction,
// the tile body and EOC on Finish.
type StripeCompressor struct {
	cw        *CodestreamWriter
	log       *slog.Logger
	p         StripeParams
	precision int
	useMCT    bool
	planes    [][]int
	rows      []int
	done      bool
}

// NewStripeCompressor writes the main header to w and returns a compressor ready for stripes
func NewStripeCompressor(w io.Writer, p StripeParams, log *slog.Logger) (*StripeCompressor, error) {
	if log == nil {
		log = slog.Default()
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d image", ErrStripe, p.Width, p.Height)
	}
	prec, err := p.precision()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStripe, err)
	}
	if len(p.Components) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d components", ErrStripe, len(p.Components))
	}

	useMCT := p.UseMCT && len(p.Components) >= 3
	cod, err := BuildCOD(p.DecompLevels, p.Progression, p.CodeBlockWidth, p.CodeBlockHeight, useMCT, p.HighThroughput)
	if err != nil {
		return nil, err
	}

	sc := &StripeCompressor{
		cw:        NewCodestreamWriter(w),
		log:       log,
		p:         p,
		precision: prec,
		useMCT:    useMCT,
		planes:    make([][]int, len(p.Components)),
		rows:      make([]int, len(p.Components)),
	}
	for c := range sc.planes {
		sc.planes[c] = make([]int, p.Width*p.Height)
	}

	if err := sc.writeMainHeader(cod); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *StripeCompressor) writeMainHeader(cod *CODMarker) error {
	cw := sc.cw
	if err := cw.WriteSOC(); err != nil {
		return err
	}
	if err := cw.WriteSIZ(BuildSIZ(sc.p.Width, sc.p.Height, sc.p.Components, sc.p.HighThroughput)); err != nil {
		return err
	}
	if err := cw.WriteCOD(cod); err != nil {
		return err
	}
	if err := cw.WriteQCD(BuildDefaultQCD(int(cod.DecompLevels), 1)); err != nil {
		return err
	}
	if sc.p.NonLinearity != NLTNone {
		if err := cw.WriteNLT(BuildNLT(sc.precision, sc.p.Components[0].Signed, sc.p.NonLinearity)); err != nil {
			return err
		}
	}
	// Psot of zero lets the single tile-part run to EOC
	if err := cw.WriteSOT(&SOTMarker{NumTileParts: 1}); err != nil {
		return err
	}
	if err := cw.WriteSOD(); err != nil {
		return err
	}
	return cw.Flush()
}

// PushStripe consumes heights[c] rows of every component c from buf. Sample
// x of row r of component c is the word at offsets[c] + r*gaps[c] + x, where
// words are wordSize-byte little-endian signed integers.
func (sc *StripeCompressor) PushStripe(buf []byte, wordSize int, heights, offsets, gaps []int) error {
	if sc.done {
		return fmt.Errorf("%w: compressor finished", ErrStripe)
	}
	if err := checkStripe(len(buf), wordSize, heights, offsets, gaps, sc.rows, sc.p.Width, sc.p.Height); err != nil {
		return err
	}
	if wordSize*8 < sc.precision {
		return fmt.Errorf("%w: %d-byte words cannot hold %d-bit samples", ErrStripe, wordSize, sc.precision)
	}

	for c, h := range heights {
		plane := sc.planes[c]
		for r := 0; r < h; r++ {
			dst := plane[(sc.rows[c]+r)*sc.p.Width:]
			word := offsets[c] + r*gaps[c]
			for x := 0; x < sc.p.Width; x++ {
				dst[x] = readWord(buf, word+x, wordSize)
			}
		}
		sc.rows[c] += h
	}
	return nil
}

// Finish codes the tile once every row has been pushed and terminates the codestream
func (sc *StripeCompressor) Finish() error {
	if sc.done {
		return nil
	}
	sc.done = true
	for c, r := range sc.rows {
		if r != sc.p.Height {
			return fmt.Errorf("%w: component %d has %d of %d rows", ErrStripe, c, r, sc.p.Height)
		}
	}

	te := NewTileEncoder(sc.p.Width, sc.p.Height, sc.p.DecompLevels, sc.precision, sc.useMCT, sc.p.NonLinearity)
	body, err := te.EncodeTile(sc.planes)
	sc.planes = nil
	if err != nil {
		return err
	}
	sc.log.Debug("stripe codestream body",
		slog.Int("width", sc.p.Width),
		slog.Int("height", sc.p.Height),
		slog.Int("components", len(sc.p.Components)),
		slog.Bool("mct", sc.useMCT),
		slog.Int("bytes", len(body)))

	if err := sc.cw.WriteBytes(body); err != nil {
		return err
	}
	if err := sc.cw.WriteEOC(); err != nil {
		return err
	}
	return sc.cw.Flush()
}

// StripeDecompressor parses a codestream and hands back rows through PullStripe
type StripeDecompressor struct {
	log       *slog.Logger
	siz       SIZMarker
	cod       CODMarker
	nlt       NLType
	precision int
	planes    [][]int
	rows      []int
}

// NewStripeDecompressor parses and decodes the codestream in data
func NewStripeDecompressor(data []byte, log *slog.Logger) (*StripeDecompressor, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(data) < 4 || binary.BigEndian.Uint16(data[0:2]) != MarkerSOC {
		return nil, ErrInvalidFormat
	}

	cr := NewCodestreamReader(bytes.NewReader(data))
	if err := cr.ReadMainHeader(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	sot, err := cr.ReadSOT()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if sot.TileIndex != 0 {
		return nil, fmt.Errorf("%w: tile %d in a single-tile codestream", ErrInvalidFormat, sot.TileIndex)
	}
	if err := cr.ReadTilePartHeader(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	rest, err := cr.Reader().Rest()
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 || binary.BigEndian.Uint16(rest[len(rest)-2:]) != MarkerEOC {
		return nil, fmt.Errorf("%w: missing EOC", ErrInvalidFormat)
	}
	body := rest[:len(rest)-2]

	sd := &StripeDecompressor{
		log: log,
		siz: cr.SIZ,
		cod: cr.COD,
	}
	if cr.HasNLT {
		sd.nlt = cr.NLT.Type
	}
	if err := sd.validate(); err != nil {
		return nil, err
	}

	td := NewTileDecoder(sd.siz.Width(), sd.siz.Height(), int(sd.cod.DecompLevels), sd.precision, sd.mct(), sd.nlt)
	sd.planes, err = td.DecodeTile(body, len(sd.siz.Components))
	if err != nil {
		return nil, err
	}
	sd.rows = make([]int, len(sd.planes))

	log.Debug("stripe codestream decoded",
		slog.Int("width", sd.siz.Width()),
		slog.Int("height", sd.siz.Height()),
		slog.Int("components", len(sd.planes)),
		slog.Bool("mct", sd.mct()),
		slog.String("nlt", sd.nlt.String()))
	return sd, nil
}

func (sd *StripeDecompressor) validate() error {
	siz := &sd.siz
	if siz.XOsiz != 0 || siz.YOsiz != 0 || siz.XTOsiz != 0 || siz.YTOsiz != 0 {
		return fmt.Errorf("%w: image and tile offsets must be zero", ErrUnsupportedCodec)
	}
	if siz.XSiz == 0 || siz.YSiz == 0 || siz.XTsiz < siz.XSiz || siz.YTsiz < siz.YSiz {
		return fmt.Errorf("%w: expected one tile covering %dx%d", ErrUnsupportedCodec, siz.XSiz, siz.YSiz)
	}
	if int64(siz.XSiz)*int64(siz.YSiz)*int64(len(siz.Components)) > maxStripeSamples {
		return fmt.Errorf("%w: %dx%d with %d components is too large", ErrInvalidFormat, siz.XSiz, siz.YSiz, len(siz.Components))
	}
	p := StripeParams{Components: siz.Components}
	prec, err := p.precision()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedCodec, err)
	}
	sd.precision = prec
	if sd.cod.Transform != TransformReversible53 {
		return fmt.Errorf("%w: irreversible transform", ErrUnsupportedCodec)
	}
	return nil
}

func (sd *StripeDecompressor) mct() bool {
	return sd.cod.MCT != 0 && len(sd.siz.Components) >= 3
}

// Dims returns the image width and height
func (sd *StripeDecompressor) Dims() (int, int) {
	return sd.siz.Width(), sd.siz.Height()
}

// NumComponents returns the number of components in the codestream
func (sd *StripeDecompressor) NumComponents() int {
	return len(sd.siz.Components)
}

// Precision returns the shared component bit depth
func (sd *StripeDecompressor) Precision() int {
	return sd.precision
}

// MCT reports whether the reversible color transform was applied
func (sd *StripeDecompressor) MCT() bool {
	return sd.mct()
}

// PullStripe writes the next heights[c] rows of every component c into buf,
// addressed the same way PushStripe reads them. Nothing is written unless the
// whole stripe fits.
func (sd *StripeDecompressor) PullStripe(buf []byte, wordSize int, heights, offsets, gaps []int) error {
	if sd.planes == nil {
		return fmt.Errorf("%w: decompressor finished", ErrStripe)
	}
	width, height := sd.Dims()
	if err := checkStripe(len(buf), wordSize, heights, offsets, gaps, sd.rows, width, height); err != nil {
		return err
	}
	if wordSize*8 < sd.precision {
		return fmt.Errorf("%w: %d-byte words cannot hold %d-bit samples", ErrStripe, wordSize, sd.precision)
	}

	for c, h := range heights {
		plane := sd.planes[c]
		for r := 0; r < h; r++ {
			src := plane[(sd.rows[c]+r)*width:]
			word := offsets[c] + r*gaps[c]
			for x := 0; x < width; x++ {
				writeWord(buf, word+x, wordSize, src[x])
			}
		}
		sd.rows[c] += h
	}
	return nil
}

// Finish releases decoded samples
func (sd *StripeDecompressor) Finish() error {
	sd.planes = nil
	return nil
}

// checkStripe validates a stripe description against buffer size and the rows left per component
func checkStripe(bufLen, wordSize int, heights, offsets, gaps, done []int, width, height int) error {
	if wordSize != 2 && wordSize != 4 {
		return fmt.Errorf("%w: word size %d", ErrStripe, wordSize)
	}
	n := len(done)
	if len(heights) != n || len(offsets) != n || len(gaps) != n {
		return fmt.Errorf("%w: want %d heights, offsets and gaps", ErrStripe, n)
	}
	words := bufLen / wordSize
	for c := 0; c < n; c++ {
		h := heights[c]
		if h < 0 || done[c]+h > height {
			return fmt.Errorf("%w: component %d stripe of %d rows after %d of %d", ErrStripe, c, h, done[c], height)
		}
		if h == 0 {
			continue
		}
		if offsets[c] < 0 || gaps[c] < 0 {
			return fmt.Errorf("%w: component %d negative offset or gap", ErrStripe, c)
		}
		last := offsets[c] + (h-1)*gaps[c] + width
		if last > words {
			return fmt.Errorf("%w: component %d needs %d words, buffer holds %d", ErrStripe, c, last, words)
		}
	}
	return nil
}

func readWord(buf []byte, i, wordSize int) int {
	if wordSize == 2 {
		return int(int16(binary.LittleEndian.Uint16(buf[2*i:])))
	}
	return int(int32(binary.LittleEndian.Uint32(buf[4*i:])))
}

func writeWord(buf []byte, i, wordSize, v int) {
	if wordSize == 2 {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
		return
	}
	binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
}
