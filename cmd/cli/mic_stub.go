//go:build !portaudio

package main

import (
	"errors"

	"github.com/himanishpuri/EarMark/pkg/earmark/capture"
)

func micSource(rate, frames int) (capture.Source, error) {
	return nil, errors.New("built without microphone support; rebuild with -tags portaudio or use -file")
}
