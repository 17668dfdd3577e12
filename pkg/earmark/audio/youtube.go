package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/EarMark/pkg/utils"
	"github.com/tidwall/gjson"
)

// YTMetadata is the part of yt-dlp's JSON description used for naming.
type YTMetadata struct {
	ID         string
	Title      string
	Artist     string
	Duration   float64
	WebpageURL string
}

// DisplayName is "Artist - Title", or the title when no artist is known.
func (m *YTMetadata) DisplayName() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Artist + " - " + m.Title
}

func parseYTMetadata(out []byte) (*YTMetadata, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("failed to parse yt-dlp JSON")
	}
	doc := gjson.ParseBytes(out)

	meta := &YTMetadata{
		ID:         strings.TrimSpace(doc.Get("id").String()),
		Title:      strings.TrimSpace(doc.Get("title").String()),
		Duration:   doc.Get("duration").Float(),
		WebpageURL: doc.Get("webpage_url").String(),
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("missing video ID in yt-dlp output")
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("missing title in yt-dlp output")
	}
	// artist, then channel, then uploader
	for _, field := range []string{"artist", "channel", "uploader"} {
		if v := strings.TrimSpace(doc.Get(field).String()); v != "" {
			meta.Artist = v
			break
		}
	}
	return meta, nil
}

var downloadExts = []string{".m4a", ".webm", ".opus", ".mp3", ".aac", ".ogg"}

// DownloadYouTubeAudio fetches the best audio stream of a video into
// outputDir with yt-dlp and returns the downloaded file.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL, outputDir string) (string, *YTMetadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 3*time.Minute)
		defer cancel()
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	run := func(args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, "yt-dlp", append([]string{"--no-warnings", "--no-playlist"}, args...)...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("yt-dlp failed: %v\nstderr: %s", err, stderr.String())
		}
		return stdout.Bytes(), nil
	}

	out, err := run("-J", youtubeURL)
	if err != nil {
		return "", nil, err
	}
	meta, err := parseYTMetadata(out)
	if err != nil {
		return "", nil, err
	}

	template := filepath.Join(outputDir, meta.ID+".%(ext)s")
	if _, err := run("-f", "ba", "-o", template, youtubeURL); err != nil {
		return "", nil, err
	}

	for _, ext := range downloadExts {
		candidate := filepath.Join(outputDir, meta.ID+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, meta, nil
		}
	}
	return "", nil, fmt.Errorf("downloaded audio file not found for video %s (checked extensions: %v)", meta.ID, downloadExts)
}
