package capture

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSliceSourceDeliversChunks(t *testing.T) {
	samples := make([]float32, 10*4+3)
	for i := range samples {
		samples[i] = float32(i)
	}
	src := NewSliceSource(samples, 8000, 4)

	var chunks [][]float32
	if err := src.Start(func(c []float32) {
		chunks = append(chunks, append([]float32(nil), c...))
	}); err != nil {
		t.Fatal(err)
	}
	<-src.Done()

	if len(chunks) != 10 {
		t.Fatalf("got %d chunks, want 10", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 4 || c[0] != float32(4*i) {
			t.Fatalf("chunk %d = %v", i, c)
		}
	}
	if err := src.Start(func([]float32) {}); err != ErrRunning {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}
}

func TestSliceSourceInterleaved(t *testing.T) {
	src := &SliceSource{Samples: make([]float32, 24), Rate: 8000, Chans: 2, ChunkFrames: 4}
	n := 0
	src.Start(func(c []float32) {
		if len(c) != 8 {
			t.Errorf("chunk of %d samples, want 8", len(c))
		}
		n++
	})
	<-src.Done()
	if n != 3 {
		t.Errorf("got %d chunks, want 3", n)
	}
}

func TestSliceSourceThrottle(t *testing.T) {
	src := NewSliceSource(make([]float32, 40), 8000, 4)
	var open atomic.Bool
	var delivered atomic.Int32
	src.Throttle(open.Load)

	src.Start(func([]float32) { delivered.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if delivered.Load() != 0 {
		t.Fatalf("delivered %d chunks while throttled", delivered.Load())
	}

	open.Store(true)
	select {
	case <-src.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}
	if delivered.Load() != 10 {
		t.Errorf("delivered %d chunks, want 10", delivered.Load())
	}
}

func TestSliceSourceStop(t *testing.T) {
	src := NewSliceSource(make([]float32, 8000*60), 8000, 800)
	src.Realtime = true
	var delivered atomic.Int32
	src.Start(func([]float32) { delivered.Add(1) })

	time.Sleep(150 * time.Millisecond)
	if err := src.Stop(); err != nil {
		t.Fatal(err)
	}
	n := delivered.Load()
	if n == 0 || n > 5 {
		t.Errorf("delivered %d chunks in 150ms of real-time replay", n)
	}
	select {
	case <-src.Done():
	default:
		t.Error("Done not closed after Stop")
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
