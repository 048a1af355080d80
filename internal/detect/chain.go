package detect

import (
	"fmt"

	"github.com/MrWong99/wakeline/internal/dsp"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// MelProjector runs the filter model over a magnitude spectrum and slides the
// resulting mel frame into the mel window.
type MelProjector struct {
	model  inference.Model
	window *dsp.RingBuffer
	width  int
}

// NewMelProjector checks the filter model against s and returns a projector
// with a zero-filled mel window.
func NewMelProjector(model inference.Model, s Sizes) (*MelProjector, error) {
	if n := len(model.Input(0)); n != s.Bins {
		return nil, fmt.Errorf("detect: filter model input has %d values, want %d", n, s.Bins)
	}
	if n := len(model.Output(0)); n != s.MelWidth {
		return nil, fmt.Errorf("detect: filter model output has %d values, want %d", n, s.MelWidth)
	}
	p := &MelProjector{model: model, window: dsp.NewRingBuffer(s.MelWindow()), width: s.MelWidth}
	p.Reset()
	return p, nil
}

// Input returns the buffer the magnitude spectrum is written to.
func (p *MelProjector) Input() []float32 { return p.model.Input(0) }

// Window returns the mel window.
func (p *MelProjector) Window() *dsp.RingBuffer { return p.window }

// Project runs the filter model and appends its output to the mel window,
// dropping the oldest frame.
func (p *MelProjector) Project() error {
	if err := p.model.Run(); err != nil {
		return fmt.Errorf("detect: filter: %w", err)
	}
	return p.window.Rewind().Seek(p.width).WriteAll(p.model.Output(0))
}

// Reset zero-fills the mel window.
func (p *MelProjector) Reset() {
	p.window.Reset().Fill(0)
}

// SequenceEncoder runs the encode model over the mel window and slides the
// encoded frame into the encode window. The model's recurrent state is
// carried from one call to the next.
type SequenceEncoder struct {
	model  inference.Model
	window *dsp.RingBuffer
	width  int
}

// NewSequenceEncoder checks the encode model against s and returns an encoder
// with a -1 filled encode window and zeroed state.
func NewSequenceEncoder(model inference.Model, s Sizes) (*SequenceEncoder, error) {
	if n := len(model.Input(0)); n != s.MelWindow() {
		return nil, fmt.Errorf("detect: encode model input has %d values, want %d", n, s.MelWindow())
	}
	if n := len(model.Output(0)); n != s.EncodeWidth {
		return nil, fmt.Errorf("detect: encode model output has %d values, want %d", n, s.EncodeWidth)
	}
	if n := len(model.State()); n != s.StateWidth {
		return nil, fmt.Errorf("detect: encode model state has %d values, want %d", n, s.StateWidth)
	}
	e := &SequenceEncoder{model: model, window: dsp.NewRingBuffer(s.EncodeWindow()), width: s.EncodeWidth}
	e.Reset()
	return e, nil
}

// Window returns the encode window.
func (e *SequenceEncoder) Window() *dsp.RingBuffer { return e.window }

// Encode copies the full mel window into the model, runs it and appends the
// output to the encode window.
func (e *SequenceEncoder) Encode(mel *dsp.RingBuffer) error {
	if err := mel.Rewind().ReadFull(e.model.Input(0)); err != nil {
		return fmt.Errorf("detect: encode input: %w", err)
	}
	if err := e.model.Run(); err != nil {
		return fmt.Errorf("detect: encode: %w", err)
	}
	return e.window.Rewind().Seek(e.width).WriteAll(e.model.Output(0))
}

// Reset fills the encode window with -1, the saturation value of the
// encoder's output nonlinearity, and zeroes the state.
func (e *SequenceEncoder) Reset() {
	e.window.Reset().Fill(-1)
	clear(e.model.State())
}

// Classifier runs the detect model over the encode window.
type Classifier struct {
	model inference.Model
}

// NewClassifier checks the detect model against s and the expected number of
// posteriors.
func NewClassifier(model inference.Model, s Sizes, outputs int) (*Classifier, error) {
	if n := len(model.Input(0)); n != s.EncodeWindow() {
		return nil, fmt.Errorf("detect: detect model input has %d values, want %d", n, s.EncodeWindow())
	}
	if n := len(model.Output(0)); n != outputs {
		return nil, fmt.Errorf("detect: detect model output has %d values, want %d", n, outputs)
	}
	return &Classifier{model: model}, nil
}

// Classify copies the full encode window into the model, runs it and returns
// the posteriors. The returned slice is overwritten by the next call.
func (c *Classifier) Classify(enc *dsp.RingBuffer) ([]float32, error) {
	if err := enc.Rewind().ReadFull(c.model.Input(0)); err != nil {
		return nil, fmt.Errorf("detect: detect input: %w", err)
	}
	if err := c.model.Run(); err != nil {
		return nil, fmt.Errorf("detect: detect: %w", err)
	}
	return c.model.Output(0), nil
}

// ArgMax returns the index and value of the largest posterior. Ties go to
// the lowest index.
func ArgMax(posteriors []float32) (int, float32) {
	best := 0
	for i := 1; i < len(posteriors); i++ {
		if posteriors[i] > posteriors[best] {
			best = i
		}
	}
	return best, posteriors[best]
}
