// Package jpeg2k implements the block codec engine behind HTJ2K chunks: a
// single-tile JPEG 2000 codestream (SOC, SIZ, COD, QCD, NLT, SOT, SOD, EOC)
// carrying losslessly coded samples. Samples pass through the sign-magnitude
// NLT, the reversible color transform and the 5/3 reversible DWT of
// ITU-T Rec. T.800 | ISO/IEC 15444-1 before entropy coding.
//
// Callers talk to the engine through stripes: interleaved word buffers
// described by per-component heights, sample offsets and row gaps.
package jpeg2k

import (
	"errors"
)

// Common errors
var (
	ErrInvalidFormat = errors.New("invalid JPEG 2000 format")
	ErrStripe        = errors.New("invalid stripe")
)

// StripeParams configures a stripe compressor
type StripeParams struct {
	Width           int
	Height          int
	Components      []ComponentInfo
	DecompLevels    int              // Number of DWT decomposition levels (default: 5)
	CodeBlockWidth  int              // Nominal code-block width (default: 32)
	CodeBlockHeight int              // Nominal code-block height (default: 128)
	Progression     ProgressionOrder // Progression order (default: RPCL)
	UseMCT          bool             // RCT over components 0..2
	NonLinearity    NLType
	HighThroughput  bool // Signal the HT block coder in SIZ and COD
}

// DefaultStripeParams returns lossless HT parameters for numComps signed components
func DefaultStripeParams(width, height, numComps, precision int) StripeParams {
	comps := make([]ComponentInfo, numComps)
	for i := range comps {
		comps[i] = ComponentInfo{Precision: precision, Signed: true, XRsiz: 1, YRsiz: 1}
	}
	return StripeParams{
		Width:           width,
		Height:          height,
		Components:      comps,
		DecompLevels:    5,
		CodeBlockWidth:  32,
		CodeBlockHeight: 128,
		Progression:     ProgressionRPCL,
		NonLinearity:    NLTSignMagnitude,
		HighThroughput:  true,
	}
}

// precision returns the shared component precision, or an error when components disagree
func (p StripeParams) precision() (int, error) {
	if len(p.Components) == 0 {
		return 0, errors.New("no components")
	}
	prec := p.Components[0].Precision
	for _, c := range p.Components {
		if c.Precision != prec || c.Signed != p.Components[0].Signed {
			return 0, errors.New("components must share precision and signedness")
		}
		if c.XRsiz != 1 || c.YRsiz != 1 {
			return 0, errors.New("subsampled components are not supported")
		}
	}
	if prec < 1 || prec > 32 {
		return 0, errors.New("precision out of range")
	}
	return prec, nil
}
