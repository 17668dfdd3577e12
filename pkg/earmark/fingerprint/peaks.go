package fingerprint

// ContextFrames is the number of frames required on each side of a peak.
const ContextFrames = 9

// Peak locates a local maximum of the mel energy matrix.
type Peak struct {
	T int // frame index
	B int // zero-based band, 1..NumBands-2
}

// FindPeaks returns the strict local maxima over time and band, ordered by
// frame then band. Edge bands and the first/last ContextFrames frames are
// never peaks.
func FindPeaks(mels [][]float64) []Peak {
	if len(mels) <= 2*ContextFrames {
		return nil
	}

	var peaks []Peak
	for t := ContextFrames; t < len(mels)-ContextFrames; t++ {
		for b := 1; b < len(mels[t])-1; b++ {
			v := mels[t][b]
			if v <= mels[t-1][b] || v <= mels[t+1][b] {
				continue
			}
			if v <= mels[t][b-1] || v <= mels[t][b+1] {
				continue
			}
			peaks = append(peaks, Peak{T: t, B: b})
		}
	}
	return peaks
}
