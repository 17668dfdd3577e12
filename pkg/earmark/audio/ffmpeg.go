package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// FFmpegDecoder pipes any format ffmpeg understands as signed 16-bit mono
// PCM at Rate. Files are probed first so inputs without an audio stream are
// rejected with ErrNoAudioStream.
type FFmpegDecoder struct {
	Rate    int
	Timeout time.Duration // per file; defaults to two minutes
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string) ([]float64, error) {
	if _, ok := ctx.Deadline(); !ok {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if _, err := Probe(ctx, path); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-v", "error",
		"-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.Rate),
		"-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %v (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	samples := PCM16ToFloat(out.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyAudio)
	}
	return samples, nil
}

// PCM16ToFloat converts signed 16-bit little-endian PCM to [-1, 1).
func PCM16ToFloat(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return out
}
