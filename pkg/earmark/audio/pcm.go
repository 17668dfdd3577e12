package audio

import (
	"fmt"

	"github.com/himanishpuri/EarMark/internal/resample"
)

// Downmix averages interleaved frames into mono. A trailing partial frame is
// dropped.
func Downmix(interleaved []float64, chans int) []float64 {
	if chans <= 1 {
		return interleaved
	}
	mono := make([]float64, len(interleaved)/chans)
	for i := range mono {
		var sum float64
		for c := 0; c < chans; c++ {
			sum += interleaved[i*chans+c]
		}
		mono[i] = sum / float64(chans)
	}
	return mono
}

// Convert downmixes interleaved samples captured at rate and resamples them
// to outRate with the filter delay removed.
func Convert(interleaved []float64, rate, chans, outRate int) ([]float64, error) {
	mono := Downmix(interleaved, chans)
	if rate != outRate {
		r, err := resample.New(rate, outRate)
		if err != nil {
			return nil, fmt.Errorf("resampling %d Hz to %d Hz: %w", rate, outRate, err)
		}
		if mono, err = r.ResampleAligned(mono); err != nil {
			return nil, fmt.Errorf("resampling %d Hz to %d Hz: %w", rate, outRate, err)
		}
	}
	if len(mono) == 0 {
		return nil, ErrEmptyAudio
	}
	return mono, nil
}
