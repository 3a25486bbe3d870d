package jpeg2k

// RCT implements the Reversible Color Transform for JPEG 2000
// as specified in ITU-T T.800 Annex G. Components 0, 1 and 2 are taken
// as R, G and B; the channel map puts them there before the engine runs.

// ForwardRCTInPlace applies RCT in place, leaving Y, Cb, Cr in r, g, b
func ForwardRCTInPlace(r, g, b []int) {
	for i := range r {
		ri, gi, bi := r[i], g[i], b[i]
		r[i] = (ri + 2*gi + bi) >> 2 // Y = floor((R + 2G + B) / 4)
		g[i] = bi - gi                // Cb
		b[i] = ri - gi                // Cr
	}
}

// InverseRCTInPlace applies inverse RCT in place, restoring R, G, B
func InverseRCTInPlace(y, cb, cr []int) {
	for i := range y {
		yi, cbi, cri := y[i], cb[i], cr[i]
		g := yi - ((cbi + cri) >> 2)
		y[i] = cri + g  // R
		cb[i] = g       // G
		cr[i] = cbi + g // B
	}
}

// ApplyRCT transforms the first three planes of data; fewer planes are left alone
func ApplyRCT(data [][]int) {
	if len(data) < 3 {
		return
	}
	ForwardRCTInPlace(data[0], data[1], data[2])
}

// ApplyInverseRCT reverses ApplyRCT
func ApplyInverseRCT(data [][]int) {
	if len(data) < 3 {
		return
	}
	InverseRCTInPlace(data[0], data[1], data[2])
}
