package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"os"
	"strings"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
)

// handleSpectrogram renders the working-rate signal the extractor sees.
func handleSpectrogram(args []string) int {
	var path string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		path, args = args[0], args[1:]
	}
	cmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := cmd.String("out", "", "Output PNG (default: <input>.png)")
	width := cmd.Int("width", 2048, "Image width")
	height := cmd.Int("height", 512, "Image height, one row per bin")
	cmd.Parse(args)

	if path == "" {
		fmt.Println("Usage: earmark spectrogram <wav> [-out <png>]")
		return 1
	}
	if *out == "" {
		*out = path + ".png"
	}

	dec := &audio.WAVDecoder{Rate: fingerprint.SampleRate}
	samples, err := dec.Decode(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 1
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, *width, *height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude
	spectrogram.Drawfft(img, samples, fingerprint.SampleRate, uint32(*height), false, false, true, false)

	if err := spectrogram.SavePng(img, *out); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errText("error:"), err)
		return 2
	}
	fmt.Printf("%s %s\n", okText("Saved"), *out)
	return 0
}
