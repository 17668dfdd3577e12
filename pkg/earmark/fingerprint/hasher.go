package fingerprint

// Hash layout: bits 0..MaskBits-1 hold the sign mask, the band index sits above.
const (
	MaskBits = 22
	MaskMask = 1<<MaskBits - 1
)

// MaskOf returns the 22-bit sign mask of a hash.
func MaskOf(hash uint32) uint32 {
	return hash & MaskMask
}

// BandOf returns the zero-based band field of a hash (peak band minus one).
func BandOf(hash uint32) uint32 {
	return hash >> MaskBits
}

// sum adds mels[t][b] for t in [from, to].
func sum(mels [][]float64, b, from, to int) float64 {
	var s float64
	for t := from; t <= to; t++ {
		s += mels[t][b]
	}
	return s
}

// regions holds the neighbourhood averages around one peak.
type regions struct {
	r1 [8]float64 // three-frame runs along time at the peak band
	r2 [4]float64 // three-frame runs at b+2, b+1, b-1, b-2
	r3 [4]float64 // five-cell quadrants hugging the peak
	r4 [8]float64 // four-frame blocks one and two bands away
}

func computeRegions(mels [][]float64, t, b int) regions {
	var r regions
	top := len(mels[t]) - 2 // highest band a peak can sit on

	// time axis: t-9..t-7, t-7..t-5, ... t+7..t+9
	starts := [8]int{-9, -7, -5, -3, 1, 3, 5, 7}
	for i, s := range starts {
		r.r1[i] = sum(mels, b, t+s, t+s+2) / 3
	}

	// band axis, clamped at the filterbank edges
	up2, down2 := b+2, b-2
	if b == top {
		up2 = b + 1
	}
	if b == 1 {
		down2 = b - 1
	}
	r.r2[0] = sum(mels, up2, t-1, t+1) / 3
	r.r2[1] = sum(mels, b+1, t-1, t+1) / 3
	r.r2[2] = sum(mels, b-1, t-1, t+1) / 3
	r.r2[3] = sum(mels, down2, t-1, t+1) / 3

	// quadrants
	r.r3[0] = (sum(mels, b+1, t-2, t) + sum(mels, b, t-2, t-1)) / 5
	r.r3[1] = (sum(mels, b+1, t, t+2) + sum(mels, b, t+1, t+2)) / 5
	r.r3[2] = (sum(mels, b, t+1, t+2) + sum(mels, b-1, t, t+2)) / 5
	// the (t-1, b-1) cell is counted twice
	r.r3[3] = (sum(mels, b, t-2, t-1) + 2*mels[t-1][b-1] + mels[t][b-1]) / 5

	// wide blocks: frames t-9..t-6, t-5..t-2, t+2..t+5, t+6..t+9
	blocks := [4][2]int{{t - 9, t - 6}, {t - 5, t - 2}, {t + 2, t + 5}, {t + 6, t + 9}}
	above := [4]int{0, 1, 4, 5} // r4a r4b r4e r4f
	below := [4]int{2, 3, 6, 7} // r4c r4d r4g r4h
	for i, blk := range blocks {
		if b == top {
			r.r4[above[i]] = sum(mels, b+1, blk[0], blk[1]) / 4
		} else {
			r.r4[above[i]] = (sum(mels, b+2, blk[0], blk[1]) + sum(mels, b+1, blk[0], blk[1])) / 8
		}
		if b == 1 || b == top {
			// b+2 is past the last band at the top edge, keep only b-1
			r.r4[below[i]] = sum(mels, b-1, blk[0], blk[1]) / 4
		} else {
			// pairs b+2 with b-1, matching existing catalogs
			r.r4[below[i]] = (sum(mels, b+2, blk[0], blk[1]) + sum(mels, b-1, blk[0], blk[1])) / 8
		}
	}
	return r
}

// differences returns the 22 signed contrasts encoded in the mask.
func (r regions) differences() [MaskBits]float64 {
	var d [MaskBits]float64
	for i := 0; i < 7; i++ {
		d[i] = r.r1[i] - r.r1[i+1]
	}

	d[7] = r.r2[0] - r.r2[1]
	d[8] = r.r2[1] - r.r2[2]
	d[9] = r.r2[2] - r.r2[3]

	d[10] = r.r3[0] - r.r3[1]
	d[11] = r.r3[3] - r.r3[2]
	d[12] = r.r3[0] - r.r3[3]
	d[13] = r.r3[1] - r.r3[2]

	a, bb, c, dd := r.r4[0], r.r4[1], r.r4[2], r.r4[3]
	e, f, g, h := r.r4[4], r.r4[5], r.r4[6], r.r4[7]
	d[14] = a - bb
	d[15] = c - dd
	d[16] = e - f
	d[17] = g - h
	d[18] = (a + bb) - (c + dd)
	d[19] = (e + f) - (g + h)
	d[20] = (c + dd) - (e + f)
	d[21] = (a + bb) - (g + h)
	return d
}

// HashPeak encodes the peak at (t, b). The caller guarantees ContextFrames of
// context on both sides and 1 <= b <= NumBands-2.
func HashPeak(mels [][]float64, t, b int) uint32 {
	var hash uint32
	for i, v := range computeRegions(mels, t, b).differences() {
		if v > 0 {
			hash |= 1 << i
		}
	}
	return hash | uint32(b-1)<<MaskBits
}
