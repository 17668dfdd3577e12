package listen

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrOverrun reports that both buffers filled before the consumer
	// drained either. It ends the session.
	ErrOverrun = errors.New("buffers full")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("stopped")
)

type State int32

const (
	Idle State = iota
	FillingA
	FillingB
	Overrun
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FillingA:
		return "filling A"
	case FillingB:
		return "filling B"
	case Overrun:
		return "overrun"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DoubleBuffer hands fixed-size blocks of samples from one producer to one
// consumer. The producer fills the two buffers alternately and never blocks;
// the consumer waits for a full buffer, copies it out and releases it.
//
// The full flags are atomics so the producer can test them without the lock,
// which only guards the wait/signal handoff.
type DoubleBuffer struct {
	bufs    [2][]float64
	full    [2]atomic.Bool
	done    atomic.Bool
	overrun atomic.Bool
	filling atomic.Int32 // Idle until the first write, then FillingA or FillingB

	// producer only
	target int
	idx    int

	mu   sync.Mutex
	cond *sync.Cond
}

func NewDoubleBuffer(size int) *DoubleBuffer {
	if size <= 0 {
		panic("listen: buffer size must be positive")
	}
	d := &DoubleBuffer{}
	d.bufs[0] = make([]float64, size)
	d.bufs[1] = make([]float64, size)
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Size is the capacity of each buffer.
func (d *DoubleBuffer) Size() int {
	return len(d.bufs[0])
}

func (d *DoubleBuffer) signal() {
	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Write appends samples to the current fill target, flipping to the other
// buffer and waking the consumer each time one fills. It fails with
// ErrOverrun when the next target has not been released yet, whatever the
// state of the other buffer.
func (d *DoubleBuffer) Write(samples []float64) error {
	if d.done.Load() {
		return ErrStopped
	}
	if d.overrun.Load() {
		return ErrOverrun
	}

	if len(samples) > 0 && d.filling.Load() == int32(Idle) {
		d.filling.Store(int32(FillingA))
	}
	for _, s := range samples {
		// the target has not been released yet; writing would tear it
		if d.idx == 0 && d.full[d.target].Load() {
			d.overrun.Store(true)
			d.signal()
			return ErrOverrun
		}

		d.bufs[d.target][d.idx] = s
		d.idx++
		if d.idx == len(d.bufs[d.target]) {
			d.full[d.target].Store(true)
			d.target = 1 - d.target
			d.idx = 0
			d.filling.Store(int32(FillingA) + int32(d.target))
			d.signal()
		}
	}
	return nil
}

// Wait blocks until a buffer is full and returns its slot. The flags are
// re-checked after every wake, so stale or spurious wakes are harmless. It
// returns ErrStopped after Stop and ErrOverrun when both buffers are full.
func (d *DoubleBuffer) Wait() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if d.done.Load() {
			return -1, ErrStopped
		}
		a, b := d.full[0].Load(), d.full[1].Load()
		if d.overrun.Load() || (a && b) {
			d.overrun.Store(true)
			return -1, ErrOverrun
		}
		if a {
			return 0, nil
		}
		if b {
			return 1, nil
		}
		d.cond.Wait()
	}
}

// CopyOut copies the contents of slot into dst and returns the count copied.
func (d *DoubleBuffer) CopyOut(slot int, dst []float64) int {
	return copy(dst, d.bufs[slot])
}

// Release hands slot back to the producer.
func (d *DoubleBuffer) Release(slot int) {
	d.full[slot].Store(false)
}

// Stop marks the buffer done and wakes the consumer. Later writes fail with
// ErrStopped.
func (d *DoubleBuffer) Stop() {
	d.done.Store(true)
	d.signal()
}

// Backlog is the number of full buffers awaiting the consumer.
func (d *DoubleBuffer) Backlog() int {
	n := 0
	for i := range d.full {
		if d.full[i].Load() {
			n++
		}
	}
	return n
}

func (d *DoubleBuffer) State() State {
	switch {
	case d.done.Load():
		return Done
	case d.overrun.Load():
		return Overrun
	}
	return State(d.filling.Load())
}
