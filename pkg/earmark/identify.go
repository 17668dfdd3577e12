package earmark

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/EarMark/pkg/earmark/capture"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/earmark/listen"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/models"
	"github.com/mdobak/go-xerrors"
)

// NewSession prepares a listening session for capture at nativeRate with
// the given number of interleaved channels.
func (s *earmarkService) NewSession(nativeRate, channels int) (*listen.Session, error) {
	return listen.NewSession(s.store, listen.Options{
		NativeRate: nativeRate,
		Channels:   channels,
		Match:      s.config.MatchConfig(),
	})
}

// Listen runs sess on audio from src until it ends. Sources that can wait
// are held back while the session has a buffer pending; sources that run
// out stop the session once their last buffer has been consumed.
func (s *earmarkService) Listen(ctx context.Context, sess *listen.Session, src capture.Source) (listen.Result, error) {
	if t, ok := src.(capture.Throttled); ok {
		t.Throttle(func() bool { return sess.Backlog() == 0 })
	}
	if err := src.Start(func(chunk []float32) { sess.Push(chunk) }); err != nil {
		return listen.Result{}, fmt.Errorf("starting capture: %w", err)
	}
	defer func() {
		if err := src.Stop(); err != nil {
			s.log.Warnf("stopping capture: %v", err)
		}
	}()

	finished := make(chan struct{})
	defer close(finished)
	if f, ok := src.(capture.Finite); ok {
		go func() {
			select {
			case <-f.Done():
			case <-finished:
				return
			}
			for sess.Backlog() > 0 {
				select {
				case <-finished:
					return
				case <-time.After(time.Millisecond):
				}
			}
			sess.Stop()
		}()
	}

	res, err := sess.Run(ctx)
	if err != nil {
		xerr := xerrors.New(err)
		s.log.Errorf("session %s: %v", sess.ID(), xerr)
		s.log.Debugf("%+v", xerr)
		return res, xerr
	}
	return res, nil
}

func (s *earmarkService) Identify(ctx context.Context, src capture.Source) (listen.Result, error) {
	sess, err := s.NewSession(src.SampleRate(), src.Channels())
	if err != nil {
		return listen.Result{}, err
	}
	return s.Listen(ctx, sess, src)
}

// IdentifyFile decodes a clip and runs the offline voting loop on it.
func (s *earmarkService) IdentifyFile(ctx context.Context, path string) (match.Decision, error) {
	samples, err := s.decoder.Decode(ctx, path)
	if err != nil {
		return match.Decision{}, err
	}
	s.log.Debugf("identifying %s: %.1fs of audio", path, float64(len(samples))/fingerprint.SampleRate)
	return match.MatchFile(ctx, s.store, samples, s.config.MatchConfig())
}

// IdentifyRecords votes pre-computed records in a single pass, for clients
// that fingerprint on their side.
func (s *earmarkService) IdentifyRecords(records []models.Record) (match.Decision, error) {
	return match.NewVoter(s.store, s.config.MatchConfig()).Pass(records)
}
