//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/EarMark/pkg/earmark/audio"
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorNoRecords
)

// earmarkFingerprint(samples, sampleRate, channels) fingerprints interleaved
// PCM the same way the server does.
// Returns: {error: number, data: [{hash, t}] | string}
func earmarkFingerprint(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 3 arguments: samples, sampleRate, channels")
	}

	samplesJS, rateJS, chansJS := args[0], args[1], args[2]
	if samplesJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "samples must be an Array or Float32Array")
	}
	if rateJS.Type() != js.TypeNumber || chansJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	rate, chans := rateJS.Int(), chansJS.Int()
	if rate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", rate))
	}
	if chans < 1 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid channel count: %d", chans))
	}

	length := samplesJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "samples is empty")
	}
	samples := make([]float64, length)
	for i := range samples {
		v := samplesJS.Index(i)
		if v.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("samples element %d is not a number", i))
		}
		samples[i] = v.Float()
	}

	mono, err := audio.Convert(samples, rate, chans, fingerprint.SampleRate)
	if err != nil {
		return makeErrorResponse(ErrorProcessing, err.Error())
	}

	records := fingerprint.Extract(mono)
	if len(records) == 0 {
		return makeErrorResponse(ErrorNoRecords, "No fingerprints found (audio may be silent or too short)")
	}

	out := js.Global().Get("Array").New(len(records))
	for i, rec := range records {
		obj := js.Global().Get("Object").New()
		obj.Set("hash", rec.Hash)
		obj.Set("t", rec.TimeIndex)
		out.SetIndex(i, obj)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", out)
	return result
}

func makeErrorResponse(code int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", code)
	result.Set("data", message)
	return result
}

func main() {
	js.Global().Set("earmarkFingerprint", js.FuncOf(earmarkFingerprint))

	if window := js.Global().Get("window"); !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	}
	if console := js.Global().Get("console"); !console.IsUndefined() {
		console.Call("log", "earmark WASM module ready")
	}

	select {}
}
