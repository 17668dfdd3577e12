// Package testaudio generates deterministic signals and WAV fixtures for tests.
package testaudio

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// NoteDuration is the length of each note produced by Melody.
const NoteDuration = 0.12

// Melody returns a pseudo-random sequence of enveloped two-tone notes between
// 200 Hz and 1800 Hz. The same seed always yields the same signal.
func Melody(seed int64, seconds float64, rate int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(rate))
	out := make([]float64, n)

	noteLen := int(NoteDuration * float64(rate))
	for start := 0; start < n; start += noteLen {
		f1 := 200 + rng.Float64()*1600
		f2 := 200 + rng.Float64()*1600
		a2 := 0.2 + 0.3*rng.Float64()
		for i := 0; i < noteLen && start+i < n; i++ {
			env := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(noteLen))
			ts := float64(start+i) / float64(rate)
			out[start+i] = 0.6 * env * (math.Sin(2*math.Pi*f1*ts) + a2*math.Sin(2*math.Pi*f2*ts))
		}
	}
	return out
}

// Noise returns uniform white noise with the given peak amplitude.
func Noise(seed int64, seconds float64, rate int, amp float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, int(seconds*float64(rate)))
	for i := range out {
		out[i] = amp * (2*rng.Float64() - 1)
	}
	return out
}

// Mix adds b into a copy of a, scaled by gain.
func Mix(a, b []float64, gain float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	for i := range out {
		if i < len(b) {
			out[i] += gain * b[i]
		}
	}
	return out
}

// Float32 converts samples for capture-style callbacks.
func Float32(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

// WriteWAV encodes mono samples in [-1, 1] as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float64, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * 32767))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing wav encoder: %w", err)
	}
	return nil
}
