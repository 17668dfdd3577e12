package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NumBands is the number of triangular mel filters.
const NumBands = 18

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melBinEdges returns the NumBands+2 FFT bin indices bounding the filters,
// equally spaced on the mel scale from 0 Hz to Nyquist.
func melBinEdges() []int {
	edges := make([]int, NumBands+2)
	high := hzToMel(SampleRate / 2)
	for i := range edges {
		m := high * float64(i) / float64(NumBands+1)
		edges[i] = int(float64(WindowSize+1) / SampleRate * melToHz(m))
	}
	return edges
}

// MelFilterbank builds the NumBands x NumBins triangular filter weights.
func MelFilterbank() [][]float64 {
	edges := melBinEdges()
	bank := make([][]float64, NumBands)

	for m := 1; m <= NumBands; m++ {
		lo, mid, hi := edges[m-1], edges[m], edges[m+1]
		f := make([]float64, NumBins)
		for k := lo; k < mid; k++ {
			f[k] = float64(k-lo) / float64(mid-lo)
		}
		for k := mid; k < hi; k++ {
			f[k] = float64(hi-k) / float64(hi-mid)
		}
		bank[m-1] = f
	}
	return bank
}

// MelEnergies applies the filterbank to every spectrogram frame:
// mels[frame][band].
func MelEnergies(spec [][]float64, bank [][]float64) [][]float64 {
	mels := make([][]float64, len(spec))
	for t, frame := range spec {
		row := make([]float64, len(bank))
		for b, f := range bank {
			row[b] = floats.Dot(f, frame)
		}
		mels[t] = row
	}
	return mels
}
