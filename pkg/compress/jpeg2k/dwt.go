package jpeg2k

// DWT implements the 5/3 reversible discrete wavelet transform
// as specified in ITU-T T.800 Annex F.

// Forward1D performs a 1D forward 5/3 wavelet transform in-place.
// Input signal is replaced with low-pass coefficients followed by high-pass coefficients.
// len(signal) must be at least 2.
func Forward1D(signal []int) {
	n := len(signal)
	if n < 2 {
		return
	}

	// Split into even (low) and odd (high) samples
	// Using lifting scheme:
	// 1. Predict: d[i] = x[2i+1] - floor((x[2i] + x[2i+2]) / 2)
	// 2. Update:  s[i] = x[2i] + floor((d[i-1] + d[i] + 2) / 4)

	// Temporary storage for the transform
	half := (n + 1) / 2 // Number of low-pass coefficients
	low := make([]int, half)
	high := make([]int, n-half)

	// Copy even samples to low, odd samples to high
	for i := 0; i < half; i++ {
		low[i] = signal[2*i]
	}
	for i := 0; i < len(high); i++ {
		high[i] = signal[2*i+1]
	}

	// Predict step (high-pass)
	for i := 0; i < len(high); i++ {
		left := low[i]
		right := left // Symmetric extension
		if i+1 < half {
			right = low[i+1]
		}
		high[i] -= (left + right) / 2
	}

	// Update step (low-pass)
	for i := 0; i < half; i++ {
		left := 0
		if i > 0 {
			left = high[i-1]
		} else if len(high) > 0 {
			left = high[0] // Symmetric extension
		}
		right := left
		if i < len(high) {
			right = high[i]
		}
		low[i] += (left + right + 2) / 4
	}

	// Pack results: low coefficients first, then high
	copy(signal[:half], low)
	copy(signal[half:], high)
}

// Inverse1D performs a 1D inverse 5/3 wavelet transform in-place.
// Input has low-pass coefficients followed by high-pass coefficients.
func Inverse1D(signal []int) {
	n := len(signal)
	if n < 2 {
		return
	}

	half := (n + 1) / 2
	low := make([]int, half)
	high := make([]int, n-half)

	// Unpack: low coefficients first, then high
	copy(low, signal[:half])
	copy(high, signal[half:])

	// Inverse update step
	for i := 0; i < half; i++ {
		left := 0
		if i > 0 {
			left = high[i-1]
		} else if len(high) > 0 {
			left = high[0]
		}
		right := left
		if i < len(high) {
			right = high[i]
		}
		low[i] -= (left + right + 2) / 4
	}

	// Inverse predict step
	for i := 0; i < len(high); i++ {
		left := low[i]
		right := left
		if i+1 < half {
			right = low[i+1]
		}
		high[i] += (left + right) / 2
	}

	// Interleave: even positions get low, odd positions get high
	for i := 0; i < half; i++ {
		signal[2*i] = low[i]
	}
	for i := 0; i < len(high); i++ {
		signal[2*i+1] = high[i]
	}
}

// Forward2D performs a single-level 2D forward 5/3 wavelet transform in-place.
// After transform the top-left quadrant holds LL, top-right HL,
// bottom-left LH and bottom-right HH.
func Forward2D(data []int, width, height int) {
	forwardLLRegion(data, width, width, height)
}

// Inverse2D reverses Forward2D.
func Inverse2D(data []int, width, height int) {
	inverseLLRegion(data, width, width, height)
}

// ForwardMultiLevel performs multi-level 2D DWT decomposition.
// Each level transforms the LL subband from the previous level.
// Returns dimensions of the final LL subband.
func ForwardMultiLevel(data []int, width, height, levels int) (llWidth, llHeight int) {
	llWidth = width
	llHeight = height

	for level := 0; level < levels; level++ {
		if llWidth < 2 || llHeight < 2 {
			break
		}

		// Transform the LL region from previous level (or full image for level 0)
		forwardLLRegion(data, width, llWidth, llHeight)

		llWidth = (llWidth + 1) / 2
		llHeight = (llHeight + 1) / 2
	}

	return llWidth, llHeight
}

// InverseMultiLevel performs multi-level 2D inverse DWT reconstruction.
// Levels are processed in reverse order.
func InverseMultiLevel(data []int, width, height, levels int) {
	// Calculate LL dimensions at each level
	dims := make([][2]int, levels+1)
	dims[0] = [2]int{width, height}
	for i := 1; i <= levels; i++ {
		dims[i] = [2]int{(dims[i-1][0] + 1) / 2, (dims[i-1][1] + 1) / 2}
	}

	// Reconstruct from smallest to largest
	for level := levels - 1; level >= 0; level-- {
		llWidth := dims[level][0]
		llHeight := dims[level][1]

		if llWidth < 2 || llHeight < 2 {
			continue
		}

		inverseLLRegion(data, width, llWidth, llHeight)
	}
}

// forwardLLRegion transforms only the top-left region of the image
func forwardLLRegion(data []int, stride, width, height int) {
	if width < 2 || height < 2 {
		return
	}

	// Transform rows in the region
	row := make([]int, width)
	for y := 0; y < height; y++ {
		offset := y * stride
		copy(row, data[offset:offset+width])
		Forward1D(row)
		copy(data[offset:offset+width], row)
	}

	// Transform columns in the region
	col := make([]int, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*stride+x]
		}
		Forward1D(col)
		for y := 0; y < height; y++ {
			data[y*stride+x] = col[y]
		}
	}
}

// inverseLLRegion reconstructs only the top-left region
func inverseLLRegion(data []int, stride, width, height int) {
	if width < 2 || height < 2 {
		return
	}

	// Inverse columns first
	col := make([]int, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = data[y*stride+x]
		}
		Inverse1D(col)
		for y := 0; y < height; y++ {
			data[y*stride+x] = col[y]
		}
	}

	// Inverse rows
	row := make([]int, width)
	for y := 0; y < height; y++ {
		offset := y * stride
		copy(row, data[offset:offset+width])
		Inverse1D(row)
		copy(data[offset:offset+width], row)
	}
}
