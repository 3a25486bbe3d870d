package jpeg2k

// JPEG 2000 Marker codes (ITU-T T.800 Table A.1)
const (
	// Delimiting markers
	MarkerSOC = 0xFF4F // Start of codestream
	MarkerSOT = 0xFF90 // Start of tile-part
	MarkerSOD = 0xFFD3 // Start of data
	MarkerEOC = 0xFFD9 // End of codestream

	// Fixed information markers
	MarkerSIZ = 0xFF51 // Image and tile size

	// Functional markers
	MarkerCOD = 0xFF52 // Coding style default
	MarkerCOC = 0xFF53 // Coding style component
	MarkerQCD = 0xFF5C // Quantization default
	MarkerQCC = 0xFF5D // Quantization component
	MarkerNLT = 0xFF76 // Non-linearity point transformation

	// Informational markers
	MarkerCOM = 0xFF64 // Comment
)

// Capabilities (Rsiz) bits
const (
	RsizBaseline = 0x0000
	RsizHT       = 0x4000 // ITU-T T.814 high throughput codestream
)

// ProgressionOrder defines the progression order for JPEG 2000 codestream
type ProgressionOrder byte

const (
	ProgressionLRCP ProgressionOrder = 0 // Layer-Resolution-Component-Position
	ProgressionRLCP ProgressionOrder = 1 // Resolution-Layer-Component-Position
	ProgressionRPCL ProgressionOrder = 2 // Resolution-Position-Component-Layer
	ProgressionPCRL ProgressionOrder = 3 // Position-Component-Resolution-Layer
	ProgressionCPRL ProgressionOrder = 4 // Component-Position-Resolution-Layer
)

// String returns the progression order name
func (p ProgressionOrder) String() string {
	switch p {
	case ProgressionLRCP:
		return "LRCP"
	case ProgressionRLCP:
		return "RLCP"
	case ProgressionRPCL:
		return "RPCL"
	case ProgressionPCRL:
		return "PCRL"
	case ProgressionCPRL:
		return "CPRL"
	default:
		return "Unknown"
	}
}

// CodingStyle flags (ITU-T T.800 Table A.13)
const (
	CodingStylePrecinctsUser = 0x01 // Custom precinct sizes
	CodingStyleSOPMarker     = 0x02 // SOP marker segments used
	CodingStyleEPHMarker     = 0x04 // EPH marker segments used
)

// CodeBlockStyle flags (ITU-T T.800 Table A.19, T.814 Table 4)
const (
	CodeBlockSelectiveBypass        = 0x01 // Selective arithmetic coding bypass
	CodeBlockResetContext           = 0x02 // Reset context on coding pass boundary
	CodeBlockTermOnPass             = 0x04 // Termination on each coding pass
	CodeBlockVerticalCausal         = 0x08 // Vertically causal context
	CodeBlockPredictableTermination = 0x10 // Predictable termination
	CodeBlockSegmentationSymbols    = 0x20 // Segmentation symbols used
	CodeBlockHT                     = 0x40 // HT block coder
)

// TransformType identifies the wavelet transform type
type TransformType byte

const (
	TransformIrreversible97 TransformType = 0 // 9/7 irreversible (lossy)
	TransformReversible53   TransformType = 1 // 5/3 reversible (lossless)
)

// NLType identifies the non-linear point transform applied before coding
type NLType byte

const (
	NLTNone          NLType = 0
	NLTGamma         NLType = 1
	NLTLUT           NLType = 2
	NLTSignMagnitude NLType = 3 // binary complement of sign-magnitude samples
)

// String returns the NLT name
func (n NLType) String() string {
	switch n {
	case NLTNone:
		return "none"
	case NLTGamma:
		return "gamma"
	case NLTLUT:
		return "lut"
	case NLTSignMagnitude:
		return "smag"
	default:
		return "unknown"
	}
}

// ComponentInfo holds component-specific information from SIZ marker
type ComponentInfo struct {
	Precision int  // Bit depth (1-38)
	Signed    bool // True if signed samples
	XRsiz     int  // Horizontal sample separation
	YRsiz     int  // Vertical sample separation
}

// SIZMarker holds image and tile size parameters (ITU-T T.800 A.5.1)
type SIZMarker struct {
	Rsiz       uint16          // Capabilities required
	XSiz       uint32          // Reference grid width
	YSiz       uint32          // Reference grid height
	XOsiz      uint32          // Horizontal offset
	YOsiz      uint32          // Vertical offset
	XTsiz      uint32          // Tile width
	YTsiz      uint32          // Tile height
	XTOsiz     uint32          // Tile horizontal offset
	YTOsiz     uint32          // Tile vertical offset
	Components []ComponentInfo // Per-component info
}

// Width of the image area
func (s *SIZMarker) Width() int {
	return int(s.XSiz - s.XOsiz)
}

// Height of the image area
func (s *SIZMarker) Height() int {
	return int(s.YSiz - s.YOsiz)
}

// NumXTiles returns the number of tiles horizontally
func (s *SIZMarker) NumXTiles() int {
	return int((s.XSiz - s.XTOsiz + s.XTsiz - 1) / s.XTsiz)
}

// NumYTiles returns the number of tiles vertically
func (s *SIZMarker) NumYTiles() int {
	return int((s.YSiz - s.YTOsiz + s.YTsiz - 1) / s.YTsiz)
}

// NumTiles returns the total number of tiles
func (s *SIZMarker) NumTiles() int {
	return s.NumXTiles() * s.NumYTiles()
}

// CODMarker holds coding style default parameters (ITU-T T.800 A.6.1)
type CODMarker struct {
	Scod               byte             // Coding style
	Progression        ProgressionOrder // Progression order
	NumLayers          uint16           // Number of quality layers
	MCT                byte             // Multiple component transform (0=none, 1=RCT/ICT)
	DecompLevels       byte             // Number of decomposition levels
	CodeBlockWidthExp  byte             // Code-block width exponent (add 2)
	CodeBlockHeightExp byte             // Code-block height exponent (add 2)
	CodeBlockStyle     byte             // Code-block style flags
	Transform          TransformType    // Wavelet transform type
	PrecinctSizes      []byte           // Precinct sizes (if Scod & 0x01)
}

// CodeBlockWidth returns the actual code-block width
func (c *CODMarker) CodeBlockWidth() int {
	return 1 << (c.CodeBlockWidthExp + 2)
}

// CodeBlockHeight returns the actual code-block height
func (c *CODMarker) CodeBlockHeight() int {
	return 1 << (c.CodeBlockHeightExp + 2)
}

// HighThroughput reports whether the HT block coder is selected
func (c *CODMarker) HighThroughput() bool {
	return c.CodeBlockStyle&CodeBlockHT != 0
}

// QCDMarker holds quantization default parameters (ITU-T T.800 A.6.4)
type QCDMarker struct {
	Sqcd      byte    // Quantization style
	GuardBits byte    // Number of guard bits
	StepSizes []int16 // Quantization step sizes (for reversible, these are exponents)
}

// NLTMarker holds the non-linearity point transformation segment
type NLTMarker struct {
	Component uint16 // 0xFFFF applies to all components
	BitDepth  byte   // Precision-1, MSB set when signed
	Type      NLType
}

// NLTAllComponents is the Cnlt value for a default transform
const NLTAllComponents = 0xFFFF

// SOTMarker holds tile-part header parameters (ITU-T T.800 A.4.2)
type SOTMarker struct {
	TileIndex    uint16 // Tile index
	TilePartLen  uint32 // Length of tile-part, 0 = runs to EOC
	TilePartIdx  byte   // Tile-part index
	NumTileParts byte   // Number of tile-parts (0 = not specified)
}
