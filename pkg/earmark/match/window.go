package match

import (
	"github.com/himanishpuri/EarMark/pkg/earmark/fingerprint"
	"github.com/himanishpuri/EarMark/pkg/models"
)

// Window is the rolling process window handed to the extractor: the last
// three buffers of working-rate samples, oldest first. It starts out silent.
//
// The outer buffers only give the peak picker its context. Votes come from
// the middle buffer, so every peak is counted in exactly one pass.
type Window struct {
	samples []float64
	buf     int
}

// NewWindow returns a window holding three buffers of bufSize samples.
func NewWindow(bufSize int) *Window {
	return &Window{samples: make([]float64, 3*bufSize), buf: bufSize}
}

// Push drops the oldest buffer and appends next, which is truncated or zero
// padded to the buffer size. The returned slice is owned by the window and
// valid until the next Push.
func (w *Window) Push(next []float64) []float64 {
	copy(w.samples, w.samples[w.buf:])
	tail := w.samples[2*w.buf:]
	n := copy(tail, next)
	clear(tail[n:])
	return w.samples
}

// Span is the half-open frame range [lo, hi) of the middle buffer.
func (w *Window) Span() (lo, hi int32) {
	step := int32(w.buf / fingerprint.HopSize)
	return step, 2 * step
}

// Votable keeps the records whose frame lies in Span. It filters in place.
func (w *Window) Votable(records []models.Record) []models.Record {
	lo, hi := w.Span()
	out := records[:0]
	for _, r := range records {
		if r.TimeIndex >= lo && r.TimeIndex < hi {
			out = append(out, r)
		}
	}
	return out
}

// Samples returns the current window contents.
func (w *Window) Samples() []float64 {
	return w.samples
}

// Reset silences the window.
func (w *Window) Reset() {
	clear(w.samples)
}
