//go:build portaudio

package main

import "github.com/himanishpuri/EarMark/pkg/earmark/capture"

func micSource(rate, frames int) (capture.Source, error) {
	return capture.NewPortAudioSource(rate, 1, frames), nil
}
