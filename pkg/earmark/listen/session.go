package listen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/himanishpuri/EarMark/internal/resample"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/himanishpuri/EarMark/pkg/models"
	"github.com/himanishpuri/EarMark/pkg/utils"
)

// Defaults for the capture side of a session.
const (
	DefaultNativeRate = 48000
	DefaultChannels   = 1
)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type Options struct {
	NativeRate int // capture rate in Hz
	Channels   int // interleaved channels per capture frame
	Match      match.Config
	Logger     Logger // nil tags the default logger with the session id
}

// StatusCode is the pollable state of a session.
type StatusCode int

const (
	StatusListening StatusCode = iota
	StatusFound
	StatusTimeout
	StatusOverrun
	StatusStopped
)

type Status struct {
	Code StatusCode
	Text string
}

// Outcome is how a session ended.
type Outcome int

const (
	Found Outcome = iota + 1
	TimedOut
	Overran
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case TimedOut:
		return "timeout"
	case Overran:
		return "overrun"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Result is the final report of a session. The match fields are only set
// when Outcome is Found.
type Result struct {
	Outcome Outcome
	models.MatchResult
}

// Session identifies one stretch of live audio. Push is the producer and must
// be called from a single goroutine (the capture callback); Run is the
// consumer. The process window and the vote histogram belong to Run alone.
type Session struct {
	id  string
	log Logger

	// producer side
	stream *resample.Stream
	mono   []float64
	chans  int

	buf *DoubleBuffer

	// consumer side
	voter     *match.Voter
	window    *match.Window
	extractor *fingerprint.Extractor

	mu     sync.Mutex
	status Status
}

func NewSession(store match.Store, opts Options) (*Session, error) {
	if opts.NativeRate <= 0 {
		opts.NativeRate = DefaultNativeRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}

	stream, err := resample.NewStream(opts.NativeRate, fingerprint.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("capture rate %d Hz: %w", opts.NativeRate, err)
	}

	voter := match.NewVoter(store, opts.Match)
	cfg := voter.Config()

	s := &Session{
		id:        utils.NewSessionID(),
		log:       opts.Logger,
		stream:    stream,
		chans:     opts.Channels,
		buf:       NewDoubleBuffer(cfg.BufferSize),
		voter:     voter,
		window:    match.NewWindow(cfg.BufferSize),
		extractor: fingerprint.NewExtractor(),
		status:    Status{Code: StatusListening, Text: "Press start to identify"},
	}
	if s.log == nil {
		s.log = logger.GetLogger().With(fmt.Sprintf("[session %s]", utils.ShortID(s.id)))
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Status returns the current status; safe to call from any goroutine.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(code StatusCode, text string) {
	s.mu.Lock()
	s.status = Status{Code: code, Text: text}
	s.mu.Unlock()
}

// Backlog is the number of full buffers the consumer has not taken yet.
func (s *Session) Backlog() int {
	return s.buf.Backlog()
}

// State exposes the double buffer state.
func (s *Session) State() State {
	return s.buf.State()
}

// Push feeds one capture chunk of interleaved samples at the native rate. It
// downmixes to mono, resamples to the working rate and writes the result
// into the double buffer.
func (s *Session) Push(chunk []float32) error {
	frames := len(chunk) / s.chans
	if cap(s.mono) < frames {
		s.mono = make([]float64, frames)
	}
	mono := s.mono[:frames]
	for i := range mono {
		var sum float32
		for c := 0; c < s.chans; c++ {
			sum += chunk[i*s.chans+c]
		}
		mono[i] = float64(sum) / float64(s.chans)
	}

	out, err := s.stream.Push(mono)
	if err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	if len(out) == 0 {
		return nil
	}
	err = s.buf.Write(out)
	if errors.Is(err, ErrOverrun) {
		s.setStatus(StatusOverrun, "Buffers full")
	}
	return err
}

// Stop ends the session. A blocked Run returns with Outcome Stopped.
func (s *Session) Stop() {
	s.buf.Stop()
}

// Run consumes full buffers until a match, a timeout, an overrun, Stop or
// ctx cancellation. Only an overrun or a store failure yields an error.
func (s *Session) Run(ctx context.Context) (Result, error) {
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-finished:
		}
	}()

	s.setStatus(StatusListening, "Listening...")
	s.log.Infof("listening, %d samples per buffer", s.buf.Size())

	block := make([]float64, s.buf.Size())
	for {
		slot, err := s.buf.Wait()
		switch {
		case errors.Is(err, ErrStopped):
			s.setStatus(StatusStopped, "Stopped")
			s.log.Infof("stopped after %v", s.voter.Elapsed())
			return s.result(Stopped, match.Decision{}), nil
		case errors.Is(err, ErrOverrun):
			s.setStatus(StatusOverrun, "Buffers full")
			s.log.Errorf("both buffers full after %v, giving up", s.voter.Elapsed())
			s.buf.Stop()
			return s.result(Overran, match.Decision{}), err
		}

		s.buf.CopyOut(slot, block)
		s.buf.Release(slot)

		start := time.Now()
		records := s.window.Votable(s.extractor.Extract(s.window.Push(block)))
		d, err := s.voter.Pass(records)
		if err != nil {
			s.setStatus(StatusStopped, "Store error")
			s.buf.Stop()
			return s.result(Stopped, d), err
		}
		s.log.Debugf("pass: %d records, best %d votes, took %v", len(records), d.Best.Count, time.Since(start))

		switch d.Verdict {
		case match.Match:
			s.setStatus(StatusFound, d.Name)
			s.log.Infof("matched %q with %d votes at %v", d.Name, d.Best.Count, d.Elapsed)
			s.buf.Stop()
			return s.result(Found, d), nil
		case match.Timeout:
			s.setStatus(StatusTimeout, "Timed out")
			s.log.Infof("no match after %v (best %d votes)", d.Elapsed, d.Best.Count)
			s.buf.Stop()
			return s.result(TimedOut, d), nil
		default:
			s.setStatus(StatusListening, fmt.Sprintf("Score: %d", d.Best.Count))
		}
	}
}

func (s *Session) result(o Outcome, d match.Decision) Result {
	r := Result{Outcome: o}
	if o == Found {
		r.MatchResult = d.Result()
	} else {
		r.Elapsed = s.voter.Elapsed()
		r.Score = d.Best.Count
	}
	return r
}
