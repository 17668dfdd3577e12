// Package capture delivers fixed-size chunks of interleaved float32 samples
// from an audio input to a callback.
package capture

import (
	"errors"
	"sync"
	"time"
)

var ErrRunning = errors.New("capture already started")

// Source calls back with one chunk of interleaved samples at SampleRate each
// time input is available. Callbacks come from a single goroutine and must
// return quickly.
type Source interface {
	Start(callback func(chunk []float32)) error
	Stop() error
	SampleRate() int
	Channels() int
}

// Finite is implemented by sources that run out of input. Done is closed
// after the last callback returned.
type Finite interface {
	Done() <-chan struct{}
}

// Throttled is implemented by sources that can wait for the consumer instead
// of running at a fixed pace.
type Throttled interface {
	Throttle(ready func() bool)
}

// SliceSource replays in-memory samples. By default it delivers chunks as
// fast as the ready function allows; with Realtime set it paces them at the
// sample rate.
type SliceSource struct {
	Samples     []float32 // interleaved
	Rate        int
	Chans       int
	ChunkFrames int
	Realtime    bool

	mu    sync.Mutex
	ready func() bool
	stop  chan struct{}
	done  chan struct{}
}

// NewSliceSource replays mono samples at rate in chunks of chunkFrames.
func NewSliceSource(samples []float32, rate, chunkFrames int) *SliceSource {
	return &SliceSource{Samples: samples, Rate: rate, Chans: 1, ChunkFrames: chunkFrames}
}

func (s *SliceSource) SampleRate() int { return s.Rate }

func (s *SliceSource) Channels() int {
	if s.Chans < 1 {
		return 1
	}
	return s.Chans
}

func (s *SliceSource) Throttle(ready func() bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

func (s *SliceSource) Start(callback func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrRunning
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(callback, s.ready, s.stop, s.done)
	return nil
}

func (s *SliceSource) run(callback func([]float32), ready func() bool, stop, done chan struct{}) {
	defer close(done)

	step := s.ChunkFrames * s.Channels()
	period := time.Duration(float64(s.ChunkFrames) / float64(s.Rate) * float64(time.Second))
	next := time.Now()

	// trailing samples shorter than a chunk are dropped, like a driver would
	for start := 0; start+step <= len(s.Samples); start += step {
		for ready != nil && !ready() {
			select {
			case <-stop:
				return
			case <-time.After(200 * time.Microsecond):
			}
		}
		if s.Realtime {
			next = next.Add(period)
			select {
			case <-stop:
				return
			case <-time.After(time.Until(next)):
			}
		}
		select {
		case <-stop:
			return
		default:
		}
		callback(s.Samples[start : start+step])
	}
}

// Done is closed when replay has finished or was stopped. It is nil before
// Start.
func (s *SliceSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop ends replay and waits for the last callback to return.
func (s *SliceSource) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	if stop == nil {
		return nil
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
	return nil
}
