package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the integer PCM format tag of the fmt chunk.
const wavFormatPCM = 1

// WAVDecoder reads PCM WAV files without external tools and resamples them
// to Rate with the delay-compensated resampler.
type WAVDecoder struct {
	Rate int
}

func (d *WAVDecoder) Decode(ctx context.Context, path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	valid := decoder.IsValidFile()
	if decoder.WavAudioFormat != 0 && decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%s: %w: format tag %d", path, ErrUnsupportedWAV, decoder.WavAudioFormat)
	}
	if !valid {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if decoder.BitDepth == 0 || decoder.BitDepth > 32 {
		return nil, fmt.Errorf("%s: %w: %d bits per sample", path, ErrUnsupportedWAV, decoder.BitDepth)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading samples from %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chans := int(decoder.NumChans)
	if chans < 1 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoAudioStream)
	}
	frames := len(buf.Data) / chans
	if frames == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyAudio)
	}

	// normalise to [-1, 1]
	maxVal := float64(int(1) << (uint(decoder.BitDepth) - 1))
	data := make([]float64, frames*chans)
	for i := range data {
		data[i] = float64(buf.Data[i]) / maxVal
	}

	out, err := Convert(data, int(decoder.SampleRate), chans, d.Rate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
