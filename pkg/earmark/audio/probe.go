package audio

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

type Metadata struct {
	Filename    string
	Title       string
	Artist      string
	Album       string
	DurationSec float64
	SampleRate  int
	Channels    int
	BitDepth    int
	Format      string
}

// Probe runs ffprobe on path and describes its first audio stream.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	meta, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	meta.Filename = filepath.Base(path)
	return meta, nil
}

func parseProbe(out []byte) (*Metadata, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("ffprobe returned invalid JSON")
	}
	doc := gjson.ParseBytes(out)

	stream := doc.Get(`streams.#(codec_type=="audio")`)
	if !stream.Exists() {
		return nil, ErrNoAudioStream
	}

	tags := doc.Get("format.tags")
	return &Metadata{
		Title:       tags.Get("title").String(),
		Artist:      tags.Get("artist").String(),
		Album:       tags.Get("album").String(),
		DurationSec: doc.Get("format.duration").Float(),
		SampleRate:  int(stream.Get("sample_rate").Int()),
		Channels:    int(stream.Get("channels").Int()),
		BitDepth:    int(stream.Get("bits_per_sample").Int()),
		Format:      doc.Get("format.format_name").String(),
	}, nil
}
