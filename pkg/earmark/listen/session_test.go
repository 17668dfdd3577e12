package listen

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/himanishpuri/EarMark/internal/resample"
	"github.com/himanishpuri/EarMark/internal/testaudio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/logger"
	"github.com/himanishpuri/EarMark/pkg/models"
)

const (
	nativeRate = 48000
	chunkSize  = 4800
)

type memStore struct {
	fp    map[uint32][]models.Entry
	songs map[models.SongID]string
}

func (m *memStore) GetFingerprint(hash uint32) ([]models.Entry, error) {
	return m.fp[hash], nil
}

func (m *memStore) GetSong(id models.SongID) (string, bool, error) {
	name, ok := m.songs[id]
	return name, ok, nil
}

var melodyID = models.SongID{0xe, 0xa, 0x4}

// catalog fingerprints a 48 kHz song the way file ingestion does.
func catalog(t *testing.T, song []float64) *memStore {
	t.Helper()
	r, err := resample.New(nativeRate, fingerprint.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{fp: map[uint32][]models.Entry{}, songs: map[models.SongID]string{melodyID: "melody.wav"}}
	working, err := r.ResampleAligned(song)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range fingerprint.Extract(working) {
		store.fp[rec.Hash] = append(store.fp[rec.Hash], models.Entry{SongID: melodyID, TimeIndex: rec.TimeIndex})
	}
	return store
}

func quietOptions() Options {
	var sink bytes.Buffer
	return Options{
		NativeRate: nativeRate,
		Logger:     logger.New(logger.Config{Level: logger.ERROR, Output: &sink}),
	}
}

// feed pushes audio chunk by chunk, letting the consumer keep up, until the
// audio ends or Run returns.
func feed(t *testing.T, s *Session, audio []float32, chans int) (Result, error) {
	t.Helper()
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Run(context.Background())
		done <- outcome{res, err}
	}()

	step := chunkSize * chans
	for start := 0; start+step <= len(audio); start += step {
		if err := s.Push(audio[start : start+step]); err != nil {
			break
		}
		for s.Backlog() > 0 {
			select {
			case o := <-done:
				return o.res, o.err
			case <-time.After(100 * time.Microsecond):
			}
		}
	}

	select {
	case o := <-done:
		return o.res, o.err
	case <-time.After(100 * time.Millisecond):
		s.Stop()
		o := <-done
		return o.res, o.err
	}
}

func TestSessionInitialStatus(t *testing.T) {
	s, err := NewSession(&memStore{}, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if st := s.Status(); st.Code != StatusListening || st.Text != "Press start to identify" {
		t.Errorf("status = %+v", st)
	}
	if len(s.ID()) != 36 {
		t.Errorf("session id %q", s.ID())
	}
}

func TestSessionIdentifiesSong(t *testing.T) {
	song := testaudio.Melody(21, 30, nativeRate)
	store := catalog(t, song)

	clip := testaudio.Mix(song[:20*nativeRate], testaudio.Noise(4, 20, nativeRate, 1), 0.02)
	s, err := NewSession(store, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	res, err := feed(t, s, testaudio.Float32(clip), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != Found {
		t.Fatalf("outcome = %v (score %d), want found", res.Outcome, res.Score)
	}
	if res.SongID != melodyID || res.Name != "melody.wav" || res.Score < 6 {
		t.Errorf("result = %+v", res)
	}
	if res.Elapsed > 15*time.Second {
		t.Errorf("match took %v", res.Elapsed)
	}
	if st := s.Status(); st.Code != StatusFound || st.Text != "melody.wav" {
		t.Errorf("status = %+v", st)
	}
	if s.State() != Done {
		t.Errorf("buffer state = %v after match", s.State())
	}
}

func TestSessionStereoDownmix(t *testing.T) {
	song := testaudio.Melody(22, 30, nativeRate)
	store := catalog(t, song)

	mono := testaudio.Float32(song[:20*nativeRate])
	stereo := make([]float32, 2*len(mono))
	for i, v := range mono {
		stereo[2*i] = v
		stereo[2*i+1] = v
	}

	opts := quietOptions()
	opts.Channels = 2
	s, err := NewSession(store, opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := feed(t, s, stereo, 2)
	if err != nil || res.Outcome != Found || res.SongID != melodyID {
		t.Fatalf("stereo result = %+v, err %v", res, err)
	}
}

func TestSessionTimesOutOnNoise(t *testing.T) {
	store := catalog(t, testaudio.Melody(23, 30, nativeRate))

	s, err := NewSession(store, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	res, err := feed(t, s, testaudio.Float32(testaudio.Noise(8, 20, nativeRate, 0.5)), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != TimedOut {
		t.Fatalf("outcome = %v (score %d), want timeout", res.Outcome, res.Score)
	}
	if res.Elapsed != 16*time.Second {
		t.Errorf("timed out at %v, want 16s", res.Elapsed)
	}
	if st := s.Status(); st.Code != StatusTimeout || st.Text != "Timed out" {
		t.Errorf("status = %+v", st)
	}
}

func TestSessionStop(t *testing.T) {
	s, err := NewSession(&memStore{}, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background())
		done <- res
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()
	select {
	case res := <-done:
		if res.Outcome != Stopped {
			t.Errorf("outcome = %v, want stopped", res.Outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if st := s.Status(); st.Code != StatusStopped {
		t.Errorf("status = %+v", st)
	}
	// the engine may hold the first chunks back while it warms up
	var perr error
	for i := 0; i < 5 && perr == nil; i++ {
		perr = s.Push(make([]float32, chunkSize))
	}
	if !errors.Is(perr, ErrStopped) {
		t.Errorf("Push after Stop = %v", perr)
	}
}

func TestSessionContextCancel(t *testing.T) {
	s, err := NewSession(&memStore{}, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := s.Run(ctx)
	if err != nil || res.Outcome != Stopped {
		t.Errorf("Run after cancel = %+v, %v", res, err)
	}
}

func TestSessionOverrun(t *testing.T) {
	s, err := NewSession(&memStore{}, quietOptions())
	if err != nil {
		t.Fatal(err)
	}

	// no consumer: each chunk yields at most 400 working samples, so both
	// 2000-sample buffers take at least ten chunks to fill
	chunk := make([]float32, chunkSize)
	pushes := 0
	for ; pushes < 20; pushes++ {
		if err = s.Push(chunk); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("push %d into full buffers = %v, want ErrOverrun", pushes, err)
	}
	if pushes < 10 {
		t.Errorf("overrun after %d pushes, buffers hold ten chunks", pushes)
	}
	if st := s.Status(); st.Code != StatusOverrun || st.Text != "Buffers full" {
		t.Errorf("status = %+v", st)
	}

	res, err := s.Run(context.Background())
	if !errors.Is(err, ErrOverrun) || res.Outcome != Overran {
		t.Errorf("Run = %+v, %v; want overrun", res, err)
	}
}
