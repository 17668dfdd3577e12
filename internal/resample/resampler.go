// Package resample converts sample streams between rates on top of the
// go-audio-resampler polyphase engine. It measures the engine's start-up
// latency once per rate pair and drops it, so output sample i lines up with
// input time i*down/up and analysis frames stay aligned with catalog time.
package resample

import (
	"errors"
	"fmt"
	"sync"

	resampler "github.com/tphakala/go-audio-resampler"
)

var ErrInvalidRate = errors.New("sample rates must be positive")

// quality trades filter length for speed. Everything above the working
// Nyquist is discarded by the extractor anyway.
const quality = resampler.QualityMedium

// engine is the streaming surface of the underlying resampler.
type engine interface {
	Process(input []float64) ([]float64, error)
	Flush() ([]float64, error)
}

// Resampler converts by the rational factor up/down.
type Resampler struct {
	in, out  int
	up, down int
	delay    int
}

// delays caches the measured latency per rate pair.
var delays sync.Map

type ratePair struct{ in, out int }

// New builds a resampler from inRate to outRate.
func New(inRate, outRate int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, inRate, outRate)
	}
	g := gcd(inRate, outRate)
	r := &Resampler{in: inRate, out: outRate, up: outRate / g, down: inRate / g}

	if d, ok := delays.Load(ratePair{inRate, outRate}); ok {
		r.delay = d.(int)
		return r, nil
	}
	d, err := r.measureDelay()
	if err != nil {
		return nil, err
	}
	delays.Store(ratePair{inRate, outRate}, d)
	r.delay = d
	return r, nil
}

func (r *Resampler) newEngine() (engine, error) {
	eng, err := resampler.New(&resampler.Config{
		InputRate:  float64(r.in),
		OutputRate: float64(r.out),
		Channels:   1,
		Quality:    resampler.QualitySpec{Preset: quality},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler %d -> %d: %w", r.in, r.out, err)
	}
	return eng, nil
}

// measureDelay runs a unit impulse placed on the output grid through a fresh
// engine and reports how far behind its expected position the peak lands.
func (r *Resampler) measureDelay() (int, error) {
	k := max(1, r.in/(4*r.down))
	pos := k * r.down
	impulse := make([]float64, 2*pos+r.in/2)
	impulse[pos] = 1

	out, err := r.run(impulse)
	if err != nil {
		return 0, err
	}
	peak := 0
	for i, v := range out {
		if v > out[peak] {
			peak = i
		}
	}
	return max(0, peak-k*r.up), nil
}

// run pushes a whole signal through a fresh engine and flushes it.
func (r *Resampler) run(in []float64) ([]float64, error) {
	eng, err := r.newEngine()
	if err != nil {
		return nil, err
	}
	out, err := eng.Process(in)
	if err != nil {
		return nil, err
	}
	tail, err := eng.Flush()
	if err != nil {
		return nil, err
	}
	return append(out, tail...), nil
}

// Ratio returns the reduced conversion factor up/down.
func (r *Resampler) Ratio() (up, down int) {
	return r.up, r.down
}

// Delay is the engine start-up latency in output samples.
func (r *Resampler) Delay() int {
	return r.delay
}

// OutputLen is the number of delay-compensated output samples for n inputs.
func (r *Resampler) OutputLen(n int) int {
	return n * r.up / r.down
}

// ResampleAligned resamples a whole signal and removes the start-up latency,
// so output sample i corresponds to input time i*down/up. Its length is
// OutputLen(len(in)).
func (r *Resampler) ResampleAligned(in []float64) ([]float64, error) {
	want := r.OutputLen(len(in))
	if want == 0 {
		return nil, nil
	}
	full, err := r.run(in)
	if err != nil {
		return nil, err
	}
	out := make([]float64, want)
	if r.delay < len(full) {
		copy(out, full[r.delay:])
	}
	return out, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
