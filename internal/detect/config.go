// Package detect implements the detection chain shared by the wakeword
// trigger and the keyword recognizer: sample windowing, spectrum analysis,
// mel projection, sequence encoding with carried state, and classification.
//
// Every component validates its model tensor sizes at construction so that a
// mismatched model fails before the first frame.
package detect

import (
	"errors"
	"fmt"

	"github.com/MrWong99/wakeline/internal/dsp"
)

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("detect: invalid config")

// Config holds the settings shared by both detector variants. Lengths are in
// milliseconds unless stated otherwise.
type Config struct {
	// SampleRate is the input sample rate in Hz. It comes from the audio
	// section and is not read from the detector's own section.
	SampleRate int `yaml:"-"`

	FFTWindowSize int    `yaml:"fft_window_size"`
	FFTWindowType string `yaml:"fft_window_type"`
	FFTHopLength  int    `yaml:"fft_hop_length"`

	MelFrameLength int `yaml:"mel_frame_length"`
	MelFrameWidth  int `yaml:"mel_frame_width"`

	EncodeLength int `yaml:"encode_length"`
	EncodeWidth  int `yaml:"encode_width"`

	// StateWidth is the size of the encoder state tensor. Zero means
	// EncodeWidth.
	StateWidth int `yaml:"state_width"`

	PreEmphasis float32 `yaml:"pre_emphasis"`
	Threshold   float32 `yaml:"threshold"`

	FilterPath string `yaml:"filter_path"`
	EncodePath string `yaml:"encode_path"`
	DetectPath string `yaml:"detect_path"`
}

// Sizes are the buffer dimensions derived from a Config.
type Sizes struct {
	Window       int // samples per FFT window
	Hop          int // samples per hop
	Bins         int // magnitude spectrum length
	MelLength    int // mel frames per mel window
	MelWidth     int // values per mel frame
	EncodeLength int // encoder frames per encode window
	EncodeWidth  int // values per encoder frame
	StateWidth   int // encoder state size
}

// MelWindow returns the number of values in the mel window.
func (s Sizes) MelWindow() int { return s.MelLength * s.MelWidth }

// EncodeWindow returns the number of values in the encode window.
func (s Sizes) EncodeWindow() int { return s.EncodeLength * s.EncodeWidth }

// Sizes validates c and returns the derived buffer dimensions.
func (c Config) Sizes() (Sizes, error) {
	if err := c.Validate(); err != nil {
		return Sizes{}, err
	}
	hop := c.FFTHopLength * c.SampleRate / 1000
	state := c.StateWidth
	if state == 0 {
		state = c.EncodeWidth
	}
	return Sizes{
		Window:       c.FFTWindowSize,
		Hop:          hop,
		Bins:         c.FFTWindowSize/2 + 1,
		MelLength:    c.MelFrameLength * c.SampleRate / 1000 / hop,
		MelWidth:     c.MelFrameWidth,
		EncodeLength: c.EncodeLength * c.SampleRate / 1000 / hop,
		EncodeWidth:  c.EncodeWidth,
		StateWidth:   state,
	}, nil
}

// Validate reports every invalid setting in c.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.SampleRate <= 0 {
		bad("sample rate %d must be positive", c.SampleRate)
	}
	if c.FFTWindowSize < 2 || c.FFTWindowSize%2 != 0 {
		bad("fft_window_size %d must be even and >= 2", c.FFTWindowSize)
	}
	if _, err := dsp.Window(c.FFTWindowType, 2); err != nil {
		bad("fft_window_type %q is not supported", c.FFTWindowType)
	}
	if len(errs) == 0 {
		hop := c.FFTHopLength * c.SampleRate / 1000
		switch {
		case hop <= 0:
			bad("fft_hop_length %dms is shorter than one sample", c.FFTHopLength)
		case hop > c.FFTWindowSize:
			bad("fft_hop_length %dms (%d samples) exceeds the window size %d", c.FFTHopLength, hop, c.FFTWindowSize)
		default:
			if c.MelFrameLength*c.SampleRate/1000/hop < 1 {
				bad("mel_frame_length %dms is shorter than one hop", c.MelFrameLength)
			}
			if c.EncodeLength*c.SampleRate/1000/hop < 1 {
				bad("encode_length %dms is shorter than one hop", c.EncodeLength)
			}
		}
	}
	if c.MelFrameWidth < 1 {
		bad("mel_frame_width %d must be positive", c.MelFrameWidth)
	}
	if c.EncodeWidth < 1 {
		bad("encode_width %d must be positive", c.EncodeWidth)
	}
	if c.StateWidth < 0 {
		bad("state_width %d must not be negative", c.StateWidth)
	}
	if c.PreEmphasis < 0 || c.PreEmphasis >= 1 {
		bad("pre_emphasis %v must be in [0, 1)", c.PreEmphasis)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		bad("threshold %v must be in [0, 1]", c.Threshold)
	}
	for _, p := range []struct{ key, path string }{
		{"filter_path", c.FilterPath},
		{"encode_path", c.EncodePath},
		{"detect_path", c.DetectPath},
	} {
		if p.path == "" {
			bad("%s is required", p.key)
		}
	}
	return errors.Join(errs...)
}
