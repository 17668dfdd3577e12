package earmark

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/EarMark/internal/testaudio"
	"github.com/himanishpuri/EarMark/pkg/earmark/capture"
	"github.com/himanishpuri/EarMark/pkg/earmark/listen"
	"github.com/himanishpuri/EarMark/pkg/earmark/match"
	"github.com/himanishpuri/EarMark/pkg/logger"
)

const nativeRate = 48000

func quietLogger() *logger.Logger {
	var sink bytes.Buffer
	return logger.New(logger.Config{Level: logger.ERROR, Output: &sink})
}

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	opts = append([]Option{
		WithDataDir(t.TempDir()),
		WithTempDir(t.TempDir()),
		WithLogger(quietLogger()),
	}, opts...)
	svc, err := NewService(opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func writeWAV(t *testing.T, dir, name string, samples []float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := testaudio.WriteWAV(path, samples, nativeRate); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	c := filepath.Join(dir, "c.bin")
	os.WriteFile(a, []byte("same bytes"), 0o644)
	os.WriteFile(b, []byte("same bytes"), 0o644)
	os.WriteFile(c, []byte("other bytes"), 0o644)

	ida, err := DigestFile(a)
	if err != nil {
		t.Fatal(err)
	}
	idb, _ := DigestFile(b)
	idc, _ := DigestFile(c)
	if ida != idb {
		t.Errorf("identical files got ids %s and %s", ida, idb)
	}
	if ida == idc {
		t.Errorf("different files share id %s", ida)
	}
	if ida.IsZero() {
		t.Error("digest is zero")
	}

	if _, err := DigestFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIngestStatusExitCodes(t *testing.T) {
	tests := []struct {
		status IngestStatus
		code   int
	}{
		{Inserted, 0},
		{Skipped, 0},
		{BadFile, 1},
		{Failed, 2},
	}
	for _, tt := range tests {
		if got := tt.status.ExitCode(); got != tt.code {
			t.Errorf("%v.ExitCode() = %d, want %d", tt.status, got, tt.code)
		}
	}
}

func TestNewServiceUnknownBackend(t *testing.T) {
	_, err := NewService(
		WithDataDir(t.TempDir()),
		WithBackend("cassandra"),
		WithLogger(quietLogger()),
	)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestIngestInsertsThenSkips(t *testing.T) {
	for _, backend := range []string{BackendBadger, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			svc := newTestService(t, WithBackend(backend))
			path := writeWAV(t, t.TempDir(), "melody.wav", testaudio.Melody(1, 5, nativeRate))
			ctx := context.Background()

			status, err := svc.Ingest(ctx, path)
			if err != nil || status != Inserted {
				t.Fatalf("first ingest = %v, %v", status, err)
			}
			before, err := svc.Stats()
			if err != nil {
				t.Fatal(err)
			}
			if before.Songs != 1 || before.Fingerprints == 0 {
				t.Fatalf("stats after ingest = %+v", before)
			}

			status, err = svc.Ingest(ctx, path)
			if err != nil || status != Skipped {
				t.Fatalf("second ingest = %v, %v", status, err)
			}
			after, _ := svc.Stats()
			if after != before {
				t.Errorf("re-ingest changed stats: %+v -> %+v", before, after)
			}

			songs, err := svc.ListSongs()
			if err != nil {
				t.Fatal(err)
			}
			if len(songs) != 1 || songs[0].Name != "melody.wav" {
				t.Errorf("songs = %+v", songs)
			}
			id, _ := DigestFile(path)
			if songs[0].ID != id {
				t.Errorf("song id = %s, want digest %s", songs[0].ID, id)
			}
		})
	}
}

func TestIngestBadFiles(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	ctx := context.Background()

	status, err := svc.Ingest(ctx, filepath.Join(dir, "missing.wav"))
	if status != BadFile || err == nil {
		t.Errorf("missing file = %v, %v", status, err)
	}

	garbage := filepath.Join(dir, "garbage.wav")
	os.WriteFile(garbage, []byte("this is not a wav file"), 0o644)
	status, err = svc.Ingest(ctx, garbage)
	if status != BadFile || err == nil {
		t.Errorf("garbage file = %v, %v", status, err)
	}

	stats, _ := svc.Stats()
	if stats.Songs != 0 || stats.Fingerprints != 0 {
		t.Errorf("bad files left data behind: %+v", stats)
	}
}

func TestIngestPathsCombinesExitCodes(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	writeWAV(t, dir, "a.wav", testaudio.Melody(2, 3, nativeRate))
	writeWAV(t, dir, "b.wav", testaudio.Melody(3, 3, nativeRate))
	garbage := filepath.Join(t.TempDir(), "broken.wav")
	os.WriteFile(garbage, []byte("nope"), 0o644)

	var reports []IngestReport
	code, err := svc.IngestPaths(context.Background(), []string{dir, garbage}, func(r IngestReport) {
		reports = append(reports, r)
	})
	if err != nil {
		t.Fatal(err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	want := []IngestStatus{Inserted, Inserted, BadFile}
	for i, r := range reports {
		if r.Status != want[i] {
			t.Errorf("report %d (%s) = %v, want %v", i, r.Path, r.Status, want[i])
		}
	}

	code, err = svc.IngestPaths(context.Background(), []string{dir}, nil)
	if err != nil || code != 0 {
		t.Errorf("re-ingest = %d, %v, want 0", code, err)
	}
}

func TestIngestYouTubeRejectsOtherURLs(t *testing.T) {
	svc := newTestService(t)
	status, err := svc.IngestYouTube(context.Background(), "https://example.com/watch?v=abc")
	if status != BadFile || err == nil {
		t.Errorf("got %v, %v", status, err)
	}
}

func TestDeleteSongRemovesFingerprints(t *testing.T) {
	svc := newTestService(t)
	path := writeWAV(t, t.TempDir(), "melody.wav", testaudio.Melody(4, 4, nativeRate))
	if _, err := svc.Ingest(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	id, _ := DigestFile(path)

	removed, err := svc.DeleteSong(id)
	if err != nil {
		t.Fatal(err)
	}
	if removed == 0 {
		t.Error("no fingerprint entries removed")
	}
	if _, ok, _ := svc.GetSong(id); ok {
		t.Error("song still catalogued")
	}
	stats, _ := svc.Stats()
	if stats.Songs != 0 || stats.Fingerprints != 0 {
		t.Errorf("stats after delete = %+v", stats)
	}
}

// ingestMelody catalogs a 30 s song and returns its samples.
func ingestMelody(t *testing.T, svc Service) []float64 {
	t.Helper()
	song := testaudio.Melody(42, 30, nativeRate)
	path := writeWAV(t, t.TempDir(), "melody.wav", song)
	if status, err := svc.Ingest(context.Background(), path); err != nil || status != Inserted {
		t.Fatalf("ingest = %v, %v", status, err)
	}
	return song
}

func TestIdentifyFromCapture(t *testing.T) {
	svc := newTestService(t)
	song := ingestMelody(t, svc)

	// a noisy excerpt starting 5 s in
	excerpt := song[5*nativeRate : 20*nativeRate]
	clip := testaudio.Mix(excerpt, testaudio.Noise(7, 15, nativeRate, 1), 0.02)
	src := capture.NewSliceSource(testaudio.Float32(clip), nativeRate, DefaultChunkFrames)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := svc.Identify(ctx, src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if res.Outcome != listen.Found {
		t.Fatalf("outcome = %v, want Found", res.Outcome)
	}
	if res.Name != "melody.wav" {
		t.Errorf("name = %q", res.Name)
	}
	if res.Score < match.DefaultThreshold {
		t.Errorf("score %d below threshold", res.Score)
	}
}

func TestIdentifyNoiseTimesOut(t *testing.T) {
	svc := newTestService(t)
	ingestMelody(t, svc)

	noise := testaudio.Noise(11, 20, nativeRate, 0.5)
	src := capture.NewSliceSource(testaudio.Float32(noise), nativeRate, DefaultChunkFrames)

	res, err := svc.Identify(context.Background(), src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if res.Outcome != listen.TimedOut {
		t.Fatalf("outcome = %v, want TimedOut", res.Outcome)
	}
	if res.Elapsed != 16*time.Second {
		t.Errorf("elapsed = %v, want 16s", res.Elapsed)
	}
}

func TestIdentifyShortClipStops(t *testing.T) {
	svc := newTestService(t)
	ingestMelody(t, svc)

	silence := make([]float32, 3*nativeRate)
	src := capture.NewSliceSource(silence, nativeRate, DefaultChunkFrames)

	res, err := svc.Identify(context.Background(), src)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if res.Outcome != listen.Stopped {
		t.Errorf("outcome = %v, want Stopped", res.Outcome)
	}
}

func TestIdentifyFile(t *testing.T) {
	svc := newTestService(t)
	song := ingestMelody(t, svc)

	clip := writeWAV(t, t.TempDir(), "clip.wav", song[8*nativeRate:20*nativeRate])
	d, err := svc.IdentifyFile(context.Background(), clip)
	if err != nil {
		t.Fatal(err)
	}
	if d.Verdict != match.Match {
		t.Fatalf("verdict = %v (best %d votes)", d.Verdict, d.Best.Count)
	}
	if d.Name != "melody.wav" {
		t.Errorf("name = %q", d.Name)
	}
}

func TestPruneOnOpen(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, WithDataDir(dir))
	path := writeWAV(t, t.TempDir(), "melody.wav", testaudio.Melody(5, 3, nativeRate))
	if _, err := svc.Ingest(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	s, err := NewService(WithDataDir(dir), WithLogger(quietLogger()), WithPruneOnOpen(true))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	stats, _ := s.Stats()
	if stats.Songs != 1 || stats.Fingerprints == 0 {
		t.Errorf("prune removed catalogued data: %+v", stats)
	}
}
