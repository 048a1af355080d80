package detect

import (
	"fmt"

	"github.com/MrWong99/wakeline/internal/dsp"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// Frontend turns PCM samples into the encode window. It owns the signal
// conditioner, the sample window, the spectrum analyser, the mel projector and
// the sequence encoder.
type Frontend struct {
	cond     *dsp.Conditioner
	samples  *dsp.RingBuffer
	frame    []float32
	analyzer *dsp.SpectrumAnalyzer
	hop      int
	mel      *MelProjector
	enc      *SequenceEncoder
}

// NewFrontend builds the chain for c using the filter and encode models.
func NewFrontend(c Config, cond dsp.ConditionerConfig, filter, encode inference.Model) (*Frontend, error) {
	s, err := c.Sizes()
	if err != nil {
		return nil, err
	}
	analyzer, err := dsp.NewSpectrumAnalyzer(c.FFTWindowType, s.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	mel, err := NewMelProjector(filter, s)
	if err != nil {
		return nil, err
	}
	enc, err := NewSequenceEncoder(encode, s)
	if err != nil {
		return nil, err
	}
	return &Frontend{
		cond:     dsp.NewConditioner(cond),
		samples:  dsp.NewRingBuffer(s.Window),
		frame:    make([]float32, s.Window),
		analyzer: analyzer,
		hop:      s.Hop,
		mel:      mel,
		enc:      enc,
	}, nil
}

// Observe feeds a frame's energy to the RMS estimate. Call once per frame
// before pushing its samples.
func (f *Frontend) Observe(frame []int16, speech bool) {
	f.cond.Observe(frame, speech)
}

// Push conditions s and appends it to the sample window. When the window is
// full and analyze is set, the window is run through the spectrum analyser,
// mel projector and sequence encoder. The window then slides by one hop
// whether or not it was analysed. Push reports whether analysis ran.
func (f *Frontend) Push(s int16, analyze bool) (bool, error) {
	if err := f.samples.Write(f.cond.Next(s)); err != nil {
		return false, fmt.Errorf("detect: sample window: %w", err)
	}
	if !f.samples.IsFull() {
		return false, nil
	}
	if analyze {
		if err := f.analyze(); err != nil {
			return false, err
		}
	}
	f.samples.Rewind().Seek(f.hop)
	return analyze, nil
}

func (f *Frontend) analyze() error {
	if err := f.samples.ReadFull(f.frame); err != nil {
		return fmt.Errorf("detect: sample window: %w", err)
	}
	f.analyzer.Analyze(f.mel.Input(), f.frame)
	if err := f.mel.Project(); err != nil {
		return err
	}
	return f.enc.Encode(f.mel.Window())
}

// EncodeWindow returns the encode window for classification.
func (f *Frontend) EncodeWindow() *dsp.RingBuffer { return f.enc.Window() }

// Reset empties the sample window, zero-fills the mel window, fills the
// encode window with -1 and zeroes the encoder state. The conditioner keeps
// its running estimates.
func (f *Frontend) Reset() {
	f.samples.Reset()
	f.mel.Reset()
	f.enc.Reset()
}

// ResetSignal restores the conditioner's initial state.
func (f *Frontend) ResetSignal() {
	f.cond.Reset()
}
