package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtractYouTubeID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/shorts/abc123/", "abc123", false},
		{"https://www.youtube.com/watch", "", true},
		{"https://vimeo.com/123", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ExtractYouTubeID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsYouTubeURL(t *testing.T) {
	if !IsYouTubeURL("https://music.YouTube.com/watch?v=x") {
		t.Error("expected youtube URL")
	}
	if IsYouTubeURL("song.wav") {
		t.Error("file path reported as youtube URL")
	}
}

func TestExpandAudioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.MP3", "notes.txt", "sub/c.flac"} {
		path := filepath.Join(dir, name)
		if err := MakeDir(filepath.Dir(path)); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ExpandAudioPaths([]string{"missing.wav", dir})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"missing.wav",
		filepath.Join(dir, "a.MP3"),
		filepath.Join(dir, "b.wav"),
		filepath.Join(dir, "sub", "c.flac"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandAudioPaths = %v, want %v", got, want)
	}
}

func TestSessionIDs(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b || len(a) != 36 {
		t.Errorf("unexpected ids %q %q", a, b)
	}
	if ShortID(a) != a[:8] || ShortID("abc") != "abc" {
		t.Error("ShortID truncation wrong")
	}
}
