package resample

// Stream turns capture chunks of any size at the native rate into a
// continuous, delay-compensated stream at the output rate. The engine keeps
// its filter state and fractional phase between pushes, so no output samples
// are lost whatever the chunk length.
type Stream struct {
	r    *Resampler
	eng  engine
	skip int // latency still to drop

	in, emitted int64
}

// NewStream creates a stream converting inRate to outRate.
func NewStream(inRate, outRate int) (*Stream, error) {
	r, err := New(inRate, outRate)
	if err != nil {
		return nil, err
	}
	s := &Stream{r: r}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Resampler exposes the rate pair and latency of the stream.
func (s *Stream) Resampler() *Resampler {
	return s.r
}

// Reset starts over with a fresh engine.
func (s *Stream) Reset() error {
	eng, err := s.r.newEngine()
	if err != nil {
		return err
	}
	s.eng = eng
	s.skip = s.r.delay
	s.in, s.emitted = 0, 0
	return nil
}

// Push resamples one chunk and returns whatever output the engine released.
// The first Delay() output samples of the stream are dropped. The returned
// slice may be empty while the engine warms up.
func (s *Stream) Push(chunk []float64) ([]float64, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	out, err := s.eng.Process(chunk)
	if err != nil {
		return nil, err
	}
	s.in += int64(len(chunk))

	if s.skip > 0 {
		n := min(s.skip, len(out))
		out = out[n:]
		s.skip -= n
	}
	s.emitted += int64(len(out))
	return out, nil
}

// Emitted is the number of output samples returned so far.
func (s *Stream) Emitted() int64 {
	return s.emitted
}

// Lag is how many output samples the stream owes for the input pushed so far.
func (s *Stream) Lag() int64 {
	return s.in*int64(s.r.up)/int64(s.r.down) - s.emitted
}
