// Package wakeword implements the continuous wakeword trigger.
//
// While the pipeline is inactive every speech frame is pushed through the
// detection chain and the detect model's posterior is compared with the
// threshold on every hop. A posterior above the threshold activates the
// pipeline; analysis then stops until the windows are reset, which happens on
// a speech-falling edge or when the pipeline deactivates.
package wakeword

import (
	"errors"
	"fmt"

	"github.com/MrWong99/wakeline/internal/detect"
	"github.com/MrWong99/wakeline/internal/dsp"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// Config configures a Trigger.
type Config struct {
	detect.Config `yaml:",inline"`

	// RMSTarget is the energy speech is normalised to.
	RMSTarget float32 `yaml:"rms_target"`

	// RMSAlpha is the EWMA rate of the running RMS estimate. Zero disables
	// normalisation.
	RMSAlpha float32 `yaml:"rms_alpha"`
}

// DefaultConfig returns the documented defaults. Model paths and the sample
// rate must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Config: detect.Config{
			FFTWindowSize:  512,
			FFTWindowType:  dsp.WindowHann,
			FFTHopLength:   10,
			MelFrameLength: 10,
			MelFrameWidth:  40,
			EncodeLength:   1000,
			EncodeWidth:    128,
			Threshold:      0.5,
		},
		RMSTarget: 0.08,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if err := c.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RMSAlpha < 0 || c.RMSAlpha > 1 {
		errs = append(errs, fmt.Errorf("%w: rms_alpha %v must be in [0, 1]", detect.ErrInvalidConfig, c.RMSAlpha))
	}
	if c.RMSAlpha > 0 && c.RMSTarget <= 0 {
		errs = append(errs, fmt.Errorf("%w: rms_target %v must be positive when rms_alpha is set", detect.ErrInvalidConfig, c.RMSTarget))
	}
	return errors.Join(errs...)
}

// Trigger is the wakeword detector stage. It implements speech.Processor.
type Trigger struct {
	cfg       Config
	models    detect.Models
	front     *detect.Frontend
	cls       *detect.Classifier
	track     detect.Tracker
	posterior float32
	closed    bool
}

// New loads the models named in cfg and returns a Trigger.
func New(cfg Config, loader inference.Loader) (*Trigger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	models, err := detect.LoadModels(loader, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("wakeword: %w", err)
	}
	t, err := NewWithModels(cfg, models)
	if err != nil {
		_ = models.Close()
		return nil, err
	}
	return t, nil
}

// NewWithModels returns a Trigger that takes ownership of already loaded
// models.
func NewWithModels(cfg Config, models detect.Models) (*Trigger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := cfg.Sizes()
	if err != nil {
		return nil, err
	}
	front, err := detect.NewFrontend(cfg.Config, dsp.ConditionerConfig{
		RMSTarget:   cfg.RMSTarget,
		RMSAlpha:    cfg.RMSAlpha,
		PreEmphasis: cfg.PreEmphasis,
	}, models.Filter, models.Encode)
	if err != nil {
		return nil, fmt.Errorf("wakeword: %w", err)
	}
	cls, err := detect.NewClassifier(models.Detect, s, 1)
	if err != nil {
		return nil, fmt.Errorf("wakeword: %w", err)
	}
	return &Trigger{cfg: cfg, models: models, front: front, cls: cls}, nil
}

// Process implements speech.Processor.
func (t *Trigger) Process(sc *speech.Context, frame []int16) error {
	e := t.track.Observe(sc.IsSpeech(), sc.IsActive())
	if e.SpeechFall || e.Deactivate {
		if e.SpeechFall && !sc.IsActive() {
			sc.TraceInfo("wake: %f", t.posterior)
		}
		t.reset()
	}
	if t.track.Phase() == detect.PhaseActive {
		return nil
	}

	analyze := t.track.Phase() == detect.PhaseAnalyzing
	t.front.Observe(frame, analyze)
	for _, s := range frame {
		stepped, err := t.front.Push(s, analyze && !sc.IsActive())
		if err != nil {
			return fmt.Errorf("wakeword: %w", err)
		}
		if stepped {
			if err := t.detect(sc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trigger) detect(sc *speech.Context) error {
	out, err := t.cls.Classify(t.front.EncodeWindow())
	if err != nil {
		return fmt.Errorf("wakeword: %w", err)
	}
	p := out[0]
	t.posterior = max(t.posterior, p)
	if p > t.cfg.Threshold {
		sc.SetActive(true)
	}
	return nil
}

// MaxPosterior returns the largest posterior since the last reset.
func (t *Trigger) MaxPosterior() float32 { return t.posterior }

func (t *Trigger) reset() {
	t.front.Reset()
	t.posterior = 0
}

// Reset implements speech.Processor. It also forgets the previous frame's
// flags and the conditioner state.
func (t *Trigger) Reset() error {
	t.reset()
	t.front.ResetSignal()
	t.track.Reset()
	return nil
}

// Close implements speech.Processor and closes the models.
func (t *Trigger) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.models.Close()
}

// Ensure Trigger implements speech.Processor at compile time.
var _ speech.Processor = (*Trigger)(nil)
