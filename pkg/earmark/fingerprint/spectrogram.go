package fingerprint

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analysis parameters. All fingerprints in a catalog must share them.
const (
	SampleRate = 4000                    // working rate in Hz
	WindowSize = SampleRate * 100 / 1000 // 100 ms
	HopSize    = SampleRate * 10 / 1000  // 10 ms
	NumBins    = WindowSize/2 + 1
)

// Hamming returns a symmetric Hamming window of length n.
func Hamming(n int) []float64 {
	return window.Hamming(n)
}

// FrameCount is the number of spectrogram frames for n samples. The final
// frame is zero padded; inputs shorter than one window yield no frames.
func FrameCount(n int) int {
	if n < WindowSize {
		return 0
	}
	return (n-WindowSize)/HopSize + 2
}

// MagnitudeSpectrum keeps the non-negative frequency bins (n/2+1) of a full
// complex spectrum and returns their magnitudes.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	if half > len(spectrum) {
		half = len(spectrum)
	}
	mag := make([]float64, half)
	for i := range mag {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// Spectrogram computes the time-major magnitude spectrogram of samples:
// spec[frame][bin], FrameCount(len(samples)) frames of NumBins bins.
func Spectrogram(samples []float64, win []float64) [][]float64 {
	frames := FrameCount(len(samples))
	spec := make([][]float64, frames)
	frame := make([]float64, WindowSize)

	for i := 0; i < frames; i++ {
		start := i * HopSize
		end := min(start+WindowSize, len(samples))

		n := copy(frame, samples[start:end])
		for j := n; j < WindowSize; j++ {
			frame[j] = 0
		}
		for j := range frame {
			frame[j] *= win[j]
		}

		spec[i] = MagnitudeSpectrum(fft.FFTReal(frame))
	}
	return spec
}
