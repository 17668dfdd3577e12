// Package audio turns audio files into mono sample slices at the working rate.
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrNoAudioStream  = errors.New("no audio stream found")
	ErrEmptyAudio     = errors.New("decoded audio is empty")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
)

// Decoder decodes a file into mono float64 samples in [-1, 1] at its
// configured rate. Any failure, including an empty result, is an error.
type Decoder interface {
	Decode(ctx context.Context, path string) ([]float64, error)
}

// AutoDecoder sends .wav files to WAV and everything else to Other.
type AutoDecoder struct {
	WAV   Decoder
	Other Decoder
}

// NewAutoDecoder decodes at rate with the native WAV reader and ffmpeg.
func NewAutoDecoder(rate int) *AutoDecoder {
	return &AutoDecoder{
		WAV:   &WAVDecoder{Rate: rate},
		Other: &FFmpegDecoder{Rate: rate},
	}
}

func (a *AutoDecoder) Decode(ctx context.Context, path string) ([]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") && a.WAV != nil {
		return a.WAV.Decode(ctx, path)
	}
	return a.Other.Decode(ctx, path)
}
