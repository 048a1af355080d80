package audio

// Framer cuts a stream of mono samples into frames of a fixed size.
type Framer struct {
	size int
	buf  []int16
}

// NewFramer returns a Framer emitting frames of size samples. It panics if
// size < 1.
func NewFramer(size int) *Framer {
	if size < 1 {
		panic("audio: frame size must be positive")
	}
	return &Framer{size: size, buf: make([]int16, 0, size)}
}

// Size returns the frame size in samples.
func (f *Framer) Size() int { return f.size }

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int { return len(f.buf) }

// Write appends samples and calls emit for every completed frame. The slice
// passed to emit is reused and only valid during the call. Write stops at
// the first emit error; the samples after the failed frame are discarded.
func (f *Framer) Write(samples []int16, emit func(frame []int16) error) error {
	for len(samples) > 0 {
		n := min(f.size-len(f.buf), len(samples))
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) < f.size {
			break
		}
		err := emit(f.buf)
		f.buf = f.buf[:0]
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush pads a partial frame with silence and emits it. It does nothing when
// no samples are pending.
func (f *Framer) Flush(emit func(frame []int16) error) error {
	if len(f.buf) == 0 {
		return nil
	}
	for len(f.buf) < f.size {
		f.buf = append(f.buf, 0)
	}
	err := emit(f.buf)
	f.buf = f.buf[:0]
	return err
}

// Reset discards pending samples.
func (f *Framer) Reset() { f.buf = f.buf[:0] }
