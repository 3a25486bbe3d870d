package jpeg2k

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// Common errors
var (
	ErrInvalidMarker    = errors.New("invalid marker")
	ErrInvalidSIZ       = errors.New("invalid SIZ marker")
	ErrInvalidCOD       = errors.New("invalid COD marker")
	ErrInvalidQCD       = errors.New("invalid QCD marker")
	ErrInvalidNLT       = errors.New("invalid NLT marker")
	ErrInvalidSOT       = errors.New("invalid SOT marker")
	ErrUnsupportedCodec = errors.New("unsupported codec feature")
)

// CodestreamReader reads JPEG 2000 codestream structure
type CodestreamReader struct {
	r      *ByteReader
	SIZ    SIZMarker
	COD    CODMarker
	QCD    QCDMarker
	NLT    NLTMarker
	HasNLT bool
}

// NewCodestreamReader creates a new codestream reader
func NewCodestreamReader(r io.Reader) *CodestreamReader {
	return &CodestreamReader{
		r: NewByteReader(r),
	}
}

// ReadMainHeader reads the main header (SOC through the first SOT marker)
func (c *CodestreamReader) ReadMainHeader() error {
	marker, err := c.readMarker()
	if err != nil {
		return fmt.Errorf("reading SOC: %w", err)
	}
	if marker != MarkerSOC {
		return fmt.Errorf("%w: expected SOC (0x%04X), got 0x%04X", ErrInvalidMarker, MarkerSOC, marker)
	}

	for {
		marker, err = c.readMarker()
		if err != nil {
			return fmt.Errorf("reading marker: %w", err)
		}

		switch marker {
		case MarkerSIZ:
			if err := c.readSIZ(); err != nil {
				return err
			}
		case MarkerCOD:
			if err := c.readCOD(); err != nil {
				return err
			}
		case MarkerQCD:
			if err := c.readQCD(); err != nil {
				return err
			}
		case MarkerNLT:
			if err := c.readNLT(); err != nil {
				return err
			}
		case MarkerSOT:
			// End of main header, return for tile processing
			return nil
		case MarkerSOD, MarkerEOC:
			return fmt.Errorf("%w: 0x%04X before SOT", ErrInvalidMarker, marker)
		default:
			// COC, QCC, COM and anything we do not interpret
			if err := c.skipSegment(); err != nil {
				return err
			}
		}
	}
}

func (c *CodestreamReader) readMarker() (uint16, error) {
	return c.r.ReadUint16()
}

func (c *CodestreamReader) skipSegment() error {
	length, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if length < 2 {
		return fmt.Errorf("%w: segment length %d", ErrInvalidMarker, length)
	}
	return c.r.Skip(int(length) - 2)
}

// readSIZ reads the SIZ marker segment
func (c *CodestreamReader) readSIZ() error {
	length, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if length < 41 { // Minimum SIZ length
		return ErrInvalidSIZ
	}

	if c.SIZ.Rsiz, err = c.r.ReadUint16(); err != nil {
		return err
	}
	for _, dst := range []*uint32{
		&c.SIZ.XSiz, &c.SIZ.YSiz, &c.SIZ.XOsiz, &c.SIZ.YOsiz,
		&c.SIZ.XTsiz, &c.SIZ.YTsiz, &c.SIZ.XTOsiz, &c.SIZ.YTOsiz,
	} {
		if *dst, err = c.r.ReadUint32(); err != nil {
			return err
		}
	}

	numComps, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if int(length) != 38+3*int(numComps) {
		return fmt.Errorf("%w: length %d for %d components", ErrInvalidSIZ, length, numComps)
	}

	c.SIZ.Components = make([]ComponentInfo, numComps)
	for i := range c.SIZ.Components {
		ssiz, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		c.SIZ.Components[i].Signed = (ssiz & 0x80) != 0
		c.SIZ.Components[i].Precision = int(ssiz&0x7F) + 1

		xrsiz, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		c.SIZ.Components[i].XRsiz = int(xrsiz)

		yrsiz, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		c.SIZ.Components[i].YRsiz = int(yrsiz)
	}

	return nil
}

// readCOD reads the COD marker segment
func (c *CodestreamReader) readCOD() error {
	length, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if length < 12 {
		return ErrInvalidCOD
	}
	seg, err := c.r.ReadBytes(int(length) - 2)
	if err != nil {
		return err
	}
	// parseCODSegment expects the length field in front
	return parseCODSegment(append([]byte{byte(length >> 8), byte(length)}, seg...), &c.COD)
}

// readQCD reads the QCD marker segment
func (c *CodestreamReader) readQCD() error {
	length, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if length < 4 {
		return ErrInvalidQCD
	}
	seg, err := c.r.ReadBytes(int(length) - 2)
	if err != nil {
		return err
	}
	return parseQCDSegment(append([]byte{byte(length >> 8), byte(length)}, seg...), &c.QCD)
}

// readNLT reads the NLT marker segment
func (c *CodestreamReader) readNLT() error {
	length, err := c.r.ReadUint16()
	if err != nil {
		return err
	}
	if length < 6 {
		return ErrInvalidNLT
	}
	seg, err := c.r.ReadBytes(int(length) - 2)
	if err != nil {
		return err
	}
	if err := parseNLTSegment(append([]byte{byte(length >> 8), byte(length)}, seg...), &c.NLT); err != nil {
		return err
	}
	c.HasNLT = true
	return nil
}

// ReadSOT reads a tile-part header (the SOT marker itself is already consumed)
func (c *CodestreamReader) ReadSOT() (*SOTMarker, error) {
	length, err := c.r.ReadUint16()
	if err != nil {
		return nil, err
	}
	if length != 10 {
		return nil, ErrInvalidSOT
	}

	sot := &SOTMarker{}
	if sot.TileIndex, err = c.r.ReadUint16(); err != nil {
		return nil, err
	}
	if sot.TilePartLen, err = c.r.ReadUint32(); err != nil {
		return nil, err
	}
	if sot.TilePartIdx, err = c.r.ReadByte(); err != nil {
		return nil, err
	}
	if sot.NumTileParts, err = c.r.ReadByte(); err != nil {
		return nil, err
	}
	return sot, nil
}

// ReadTilePartHeader reads markers between SOT and SOD
func (c *CodestreamReader) ReadTilePartHeader() error {
	for {
		marker, err := c.readMarker()
		if err != nil {
			return err
		}

		switch marker {
		case MarkerSOD:
			return nil
		case MarkerCOD:
			if err := c.readCOD(); err != nil {
				return err
			}
		case MarkerQCD:
			if err := c.readQCD(); err != nil {
				return err
			}
		case MarkerNLT:
			if err := c.readNLT(); err != nil {
				return err
			}
		default:
			if err := c.skipSegment(); err != nil {
				return err
			}
		}
	}
}

// Reader returns the underlying byte reader for reading tile data
func (c *CodestreamReader) Reader() *ByteReader {
	return c.r
}

// CodestreamWriter writes JPEG 2000 codestream structure
type CodestreamWriter struct {
	w *ByteWriter
}

// NewCodestreamWriter creates a new codestream writer
func NewCodestreamWriter(w io.Writer) *CodestreamWriter {
	return &CodestreamWriter{
		w: NewByteWriter(w),
	}
}

// WriteSOC writes the Start of Codestream marker
func (c *CodestreamWriter) WriteSOC() error {
	return c.w.WriteUint16(MarkerSOC)
}

// WriteSIZ writes the SIZ marker segment
func (c *CodestreamWriter) WriteSIZ(siz *SIZMarker) error {
	if err := c.w.WriteUint16(MarkerSIZ); err != nil {
		return err
	}

	// Length: 38 + 3*numComponents
	length := uint16(38 + 3*len(siz.Components))
	if err := c.w.WriteUint16(length); err != nil {
		return err
	}
	if err := c.w.WriteUint16(siz.Rsiz); err != nil {
		return err
	}
	for _, v := range []uint32{
		siz.XSiz, siz.YSiz, siz.XOsiz, siz.YOsiz,
		siz.XTsiz, siz.YTsiz, siz.XTOsiz, siz.YTOsiz,
	} {
		if err := c.w.WriteUint32(v); err != nil {
			return err
		}
	}
	if err := c.w.WriteUint16(uint16(len(siz.Components))); err != nil {
		return err
	}

	for _, comp := range siz.Components {
		ssiz := byte(comp.Precision - 1)
		if comp.Signed {
			ssiz |= 0x80
		}
		if err := c.w.WriteByte(ssiz); err != nil {
			return err
		}
		if err := c.w.WriteByte(byte(comp.XRsiz)); err != nil {
			return err
		}
		if err := c.w.WriteByte(byte(comp.YRsiz)); err != nil {
			return err
		}
	}

	return nil
}

// WriteCOD writes the COD marker segment
func (c *CodestreamWriter) WriteCOD(cod *CODMarker) error {
	if err := c.w.WriteUint16(MarkerCOD); err != nil {
		return err
	}

	// Length: 12 + precinct sizes
	length := uint16(12)
	if cod.Scod&CodingStylePrecinctsUser != 0 {
		length += uint16(len(cod.PrecinctSizes))
	}
	if err := c.w.WriteUint16(length); err != nil {
		return err
	}

	if err := c.w.WriteByte(cod.Scod); err != nil {
		return err
	}
	if err := c.w.WriteByte(byte(cod.Progression)); err != nil {
		return err
	}
	if err := c.w.WriteUint16(cod.NumLayers); err != nil {
		return err
	}
	for _, b := range []byte{
		cod.MCT, cod.DecompLevels, cod.CodeBlockWidthExp, cod.CodeBlockHeightExp,
		cod.CodeBlockStyle, byte(cod.Transform),
	} {
		if err := c.w.WriteByte(b); err != nil {
			return err
		}
	}

	if cod.Scod&CodingStylePrecinctsUser != 0 {
		if err := c.w.WriteBytes(cod.PrecinctSizes); err != nil {
			return err
		}
	}

	return nil
}

// WriteQCD writes the QCD marker segment for reversible (lossless) coding
func (c *CodestreamWriter) WriteQCD(qcd *QCDMarker) error {
	if err := c.w.WriteUint16(MarkerQCD); err != nil {
		return err
	}

	// Length: 3 + step sizes
	length := uint16(3 + len(qcd.StepSizes))
	if err := c.w.WriteUint16(length); err != nil {
		return err
	}

	// Sqcd: guard bits in upper 3 bits, quantization type in lower 5
	sqcd := (qcd.GuardBits << 5) | (qcd.Sqcd & 0x1F)
	if err := c.w.WriteByte(sqcd); err != nil {
		return err
	}

	// For reversible coding, each step size is 1 byte (exponent only)
	for _, step := range qcd.StepSizes {
		if err := c.w.WriteByte(byte(step << 3)); err != nil {
			return err
		}
	}

	return nil
}

// WriteNLT writes the NLT marker segment
func (c *CodestreamWriter) WriteNLT(nlt *NLTMarker) error {
	if err := c.w.WriteUint16(MarkerNLT); err != nil {
		return err
	}
	if err := c.w.WriteUint16(6); err != nil {
		return err
	}
	if err := c.w.WriteUint16(nlt.Component); err != nil {
		return err
	}
	if err := c.w.WriteByte(nlt.BitDepth); err != nil {
		return err
	}
	return c.w.WriteByte(byte(nlt.Type))
}

// WriteSOT writes a tile-part header
func (c *CodestreamWriter) WriteSOT(sot *SOTMarker) error {
	if err := c.w.WriteUint16(MarkerSOT); err != nil {
		return err
	}
	if err := c.w.WriteUint16(10); err != nil { // Fixed length
		return err
	}
	if err := c.w.WriteUint16(sot.TileIndex); err != nil {
		return err
	}
	if err := c.w.WriteUint32(sot.TilePartLen); err != nil {
		return err
	}
	if err := c.w.WriteByte(sot.TilePartIdx); err != nil {
		return err
	}
	return c.w.WriteByte(sot.NumTileParts)
}

// WriteSOD writes the Start of Data marker
func (c *CodestreamWriter) WriteSOD() error {
	return c.w.WriteUint16(MarkerSOD)
}

// WriteEOC writes the End of Codestream marker
func (c *CodestreamWriter) WriteEOC() error {
	return c.w.WriteUint16(MarkerEOC)
}

// WriteBytes writes raw bytes
func (c *CodestreamWriter) WriteBytes(data []byte) error {
	return c.w.WriteBytes(data)
}

// Flush flushes the underlying buffer
func (c *CodestreamWriter) Flush() error {
	return c.w.Flush()
}

// BuildCOD creates a COD marker for reversible coding with the given code-block size
func BuildCOD(decompLevels int, progression ProgressionOrder, cbWidth, cbHeight int, useMCT, ht bool) (*CODMarker, error) {
	wExp, err := blockExponent(cbWidth)
	if err != nil {
		return nil, err
	}
	hExp, err := blockExponent(cbHeight)
	if err != nil {
		return nil, err
	}
	if decompLevels < 0 || decompLevels > 32 {
		return nil, fmt.Errorf("%w: %d decomposition levels", ErrInvalidCOD, decompLevels)
	}
	cod := &CODMarker{
		Scod:               0, // No user-defined precincts, no SOP/EPH
		Progression:        progression,
		NumLayers:          1,
		DecompLevels:       byte(decompLevels),
		CodeBlockWidthExp:  wExp,
		CodeBlockHeightExp: hExp,
		Transform:          TransformReversible53,
	}
	if useMCT {
		cod.MCT = 1
	}
	if ht {
		cod.CodeBlockStyle |= CodeBlockHT
	}
	return cod, nil
}

// blockExponent converts a code-block dimension to its COD exponent (size = 2^(exp+2))
func blockExponent(size int) (byte, error) {
	if size < 4 || size > 1024 || size&(size-1) != 0 {
		return 0, fmt.Errorf("%w: code-block dimension %d", ErrInvalidCOD, size)
	}
	return byte(bits.Len(uint(size)) - 1 - 2), nil
}

// BuildDefaultQCD creates a default QCD marker for lossless encoding
func BuildDefaultQCD(decompLevels int, guardBits int) *QCDMarker {
	// For reversible coding: 3*levels + 1 subbands (LL + 3 subbands per level)
	numSubbands := 3*decompLevels + 1
	return &QCDMarker{
		Sqcd:      0, // Reversible, no quantization
		GuardBits: byte(guardBits),
		StepSizes: make([]int16, numSubbands),
	}
}

// BuildSIZ creates a single-tile SIZ marker from image parameters
func BuildSIZ(width, height int, components []ComponentInfo, ht bool) *SIZMarker {
	siz := &SIZMarker{
		Rsiz:       RsizBaseline,
		XSiz:       uint32(width),
		YSiz:       uint32(height),
		XTsiz:      uint32(width),
		YTsiz:      uint32(height),
		Components: components,
	}
	if ht {
		siz.Rsiz |= RsizHT
	}
	return siz
}

// BuildNLT creates an all-component NLT marker
func BuildNLT(precision int, signed bool, t NLType) *NLTMarker {
	bd := byte(precision - 1)
	if signed {
		bd |= 0x80
	}
	return &NLTMarker{Component: NLTAllComponents, BitDepth: bd, Type: t}
}

// CodestreamInfo is the main header summary returned by ParseCodestreamHeader
type CodestreamInfo struct {
	SIZ SIZMarker
	COD CODMarker
	QCD QCDMarker
	NLT *NLTMarker
}

// ParseCodestreamHeader parses the main header of an in-memory codestream
func ParseCodestreamHeader(data []byte) (*CodestreamInfo, error) {
	if len(data) < 4 {
		return nil, errors.New("codestream too short")
	}
	if binary.BigEndian.Uint16(data[0:2]) != MarkerSOC {
		return nil, ErrInvalidMarker
	}

	info := &CodestreamInfo{}
	pos := 2
	for pos+2 <= len(data) {
		marker := binary.BigEndian.Uint16(data[pos : pos+2])
		pos += 2

		if marker == MarkerSOT || marker == MarkerSOD {
			return info, nil
		}
		if pos+2 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if length < 2 || pos+length > len(data) {
			break
		}
		segment := data[pos : pos+length]
		pos += length

		switch marker {
		case MarkerSIZ:
			if err := parseSIZSegment(segment, &info.SIZ); err != nil {
				return nil, err
			}
		case MarkerCOD:
			if err := parseCODSegment(segment, &info.COD); err != nil {
				return nil, err
			}
		case MarkerQCD:
			if err := parseQCDSegment(segment, &info.QCD); err != nil {
				return nil, err
			}
		case MarkerNLT:
			info.NLT = &NLTMarker{}
			if err := parseNLTSegment(segment, info.NLT); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: main header is truncated", ErrInvalidMarker)
}

func parseSIZSegment(data []byte, siz *SIZMarker) error {
	if len(data) < 38 {
		return ErrInvalidSIZ
	}
	siz.Rsiz = binary.BigEndian.Uint16(data[2:4])
	siz.XSiz = binary.BigEndian.Uint32(data[4:8])
	siz.YSiz = binary.BigEndian.Uint32(data[8:12])
	siz.XOsiz = binary.BigEndian.Uint32(data[12:16])
	siz.YOsiz = binary.BigEndian.Uint32(data[16:20])
	siz.XTsiz = binary.BigEndian.Uint32(data[20:24])
	siz.YTsiz = binary.BigEndian.Uint32(data[24:28])
	siz.XTOsiz = binary.BigEndian.Uint32(data[28:32])
	siz.YTOsiz = binary.BigEndian.Uint32(data[32:36])
	numComps := int(binary.BigEndian.Uint16(data[36:38]))
	if len(data) < 38+3*numComps {
		return ErrInvalidSIZ
	}

	siz.Components = make([]ComponentInfo, numComps)
	pos := 38
	for i := 0; i < numComps; i++ {
		ssiz := data[pos]
		siz.Components[i].Signed = (ssiz & 0x80) != 0
		siz.Components[i].Precision = int(ssiz&0x7F) + 1
		siz.Components[i].XRsiz = int(data[pos+1])
		siz.Components[i].YRsiz = int(data[pos+2])
		pos += 3
	}
	return nil
}

func parseCODSegment(data []byte, cod *CODMarker) error {
	if len(data) < 12 {
		return ErrInvalidCOD
	}
	cod.Scod = data[2]
	cod.Progression = ProgressionOrder(data[3])
	cod.NumLayers = binary.BigEndian.Uint16(data[4:6])
	cod.MCT = data[6]
	cod.DecompLevels = data[7]
	cod.CodeBlockWidthExp = data[8]
	cod.CodeBlockHeightExp = data[9]
	cod.CodeBlockStyle = data[10]
	cod.Transform = TransformType(data[11])

	cod.PrecinctSizes = nil
	if cod.Scod&CodingStylePrecinctsUser != 0 && len(data) > 12 {
		cod.PrecinctSizes = make([]byte, len(data)-12)
		copy(cod.PrecinctSizes, data[12:])
	}
	return nil
}

func parseQCDSegment(data []byte, qcd *QCDMarker) error {
	if len(data) < 3 {
		return ErrInvalidQCD
	}
	sqcd := data[2]
	qcd.Sqcd = sqcd & 0x1F
	qcd.GuardBits = (sqcd >> 5) & 0x07

	remaining := len(data) - 3
	switch qcd.Sqcd {
	case 0: // Reversible, exponent in bits 3-7
		qcd.StepSizes = make([]int16, remaining)
		for i := 0; i < remaining; i++ {
			qcd.StepSizes[i] = int16(data[3+i] >> 3)
		}
	case 1, 2: // Scalar derived / expounded
		qcd.StepSizes = make([]int16, remaining/2)
		for i := range qcd.StepSizes {
			qcd.StepSizes[i] = int16(binary.BigEndian.Uint16(data[3+2*i:]))
		}
	default:
		return fmt.Errorf("%w: unsupported quantization style %d", ErrInvalidQCD, qcd.Sqcd)
	}
	return nil
}

func parseNLTSegment(data []byte, nlt *NLTMarker) error {
	if len(data) < 6 {
		return ErrInvalidNLT
	}
	nlt.Component = binary.BigEndian.Uint16(data[2:4])
	nlt.BitDepth = data[4]
	nlt.Type = NLType(data[5])
	switch nlt.Type {
	case NLTNone, NLTSignMagnitude:
		return nil
	default:
		return fmt.Errorf("%w: %s transform", ErrUnsupportedCodec, nlt.Type)
	}
}
