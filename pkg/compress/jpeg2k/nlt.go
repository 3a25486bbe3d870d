package jpeg2k

// Sign-magnitude non-linearity (NLT type 3). Floating point bit patterns
// read as two's complement integers order negative values backwards; the
// transform flips the magnitude bits of negative samples so the wavelet sees
// a monotonic signal. It is its own inverse.

// SignMagnitudeNLT applies the type 3 transform to samples of the given precision
func SignMagnitudeNLT(data []int, precision int) {
	mask := 1<<(precision-1) - 1
	for i, v := range data {
		if v < 0 {
			data[i] = v ^ mask
		}
	}
}

// ApplyNLT runs the transform selected by t over every plane
func ApplyNLT(data [][]int, precision int, t NLType) error {
	switch t {
	case NLTNone:
		return nil
	case NLTSignMagnitude:
		for _, plane := range data {
			SignMagnitudeNLT(plane, precision)
		}
		return nil
	default:
		return ErrUnsupportedCodec
	}
}
