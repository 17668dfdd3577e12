//go:build !js && !wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/EarMark/internal/testaudio"
	"github.com/himanishpuri/EarMark/pkg/earmark"
	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/logger"
)

const nativeRate = 48000

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	var sink bytes.Buffer
	tmp := t.TempDir()
	svc, err := earmark.NewService(
		earmark.WithDataDir(t.TempDir()),
		earmark.WithTempDir(tmp),
		earmark.WithLogger(logger.New(logger.Config{Level: logger.ERROR, Output: &sink})),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{TempDir: tmp, Backend: earmark.BackendBadger, AllowedOrigins: []string{"*"}})
	ts := httptest.NewServer(srv.setupRoutes())
	t.Cleanup(ts.Close)

	song := filepath.Join(t.TempDir(), "melody.wav")
	if err := testaudio.WriteWAV(song, testaudio.Melody(9, 10, nativeRate), nativeRate); err != nil {
		t.Fatal(err)
	}
	return ts, song
}

func upload(t *testing.T, url, path string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	io.Copy(part, f)
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}
	resp.Body.Close()
}

func TestIngestListDelete(t *testing.T) {
	ts, song := newTestServer(t)

	resp := upload(t, ts.URL+"/api/songs", song)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first upload status = %d", resp.StatusCode)
	}
	ingested := decode[IngestResponse](t, resp)
	if ingested.Name != "melody.wav" || ingested.Status != "inserted" {
		t.Errorf("ingest response = %+v", ingested)
	}

	resp = upload(t, ts.URL+"/api/songs", song)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("second upload status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(ts.URL + "/api/songs")
	list := decode[ListSongsResponse](t, resp)
	if list.Count != 1 || list.Songs[0].ID != ingested.ID {
		t.Fatalf("list = %+v", list)
	}

	resp, _ = http.Get(ts.URL + "/api/stats")
	stats := decode[StatsResponse](t, resp)
	if stats.Songs != 1 || stats.Fingerprints == 0 {
		t.Errorf("stats = %+v", stats)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/songs/"+ingested.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(ts.URL + "/api/songs/" + ingested.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIngestRejectsGarbage(t *testing.T) {
	ts, _ := newTestServer(t)
	bad := filepath.Join(t.TempDir(), "bad.wav")
	os.WriteFile(bad, []byte("not audio"), 0o644)

	resp := upload(t, ts.URL+"/api/songs", bad)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBadSongID(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := http.Get(ts.URL + "/api/songs/42")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestMatchRecords(t *testing.T) {
	ts, song := newTestServer(t)
	upload(t, ts.URL+"/api/songs", song).Body.Close()

	samples, err := (&audio.WAVDecoder{Rate: fingerprint.SampleRate}).Decode(context.Background(), song)
	if err != nil {
		t.Fatal(err)
	}
	var req MatchRecordsRequest
	for _, rec := range fingerprint.Extract(samples[8000:14000]) {
		req.Records = append(req.Records, RecordDTO{Hash: rec.Hash, T: rec.TimeIndex})
	}
	body, _ := json.Marshal(req)

	resp, err := http.Post(ts.URL+"/api/match/records", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	got := decode[MatchResponse](t, resp)
	if !got.Matched || got.Name != "melody.wav" {
		t.Errorf("match = %+v", got)
	}
}

func TestMatchRecordsValidation(t *testing.T) {
	tests := []struct {
		name string
		req  MatchRecordsRequest
	}{
		{"empty", MatchRecordsRequest{}},
		{"band out of range", MatchRecordsRequest{Records: []RecordDTO{{Hash: 16 << fingerprint.MaskBits, T: 1}}}},
		{"negative time", MatchRecordsRequest{Records: []RecordDTO{{Hash: 1, T: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	ok := MatchRecordsRequest{Records: []RecordDTO{{Hash: 15<<fingerprint.MaskBits | 5, T: 3}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := http.Get(ts.URL + "/api/match")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
