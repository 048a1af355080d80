// Package keyword implements the single-shot keyword recognizer.
//
// While the pipeline is active every hop is run through the filter and encode
// models regardless of the speech flag. The detect model runs exactly once, on
// the frame where the pipeline goes from active to inactive; the best class
// above threshold is reported as a recognition, otherwise a timeout is
// dispatched. The windows are reset afterwards.
package keyword

import (
	"errors"
	"fmt"

	"github.com/MrWong99/wakeline/internal/detect"
	"github.com/MrWong99/wakeline/internal/dsp"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// Config configures a Recognizer.
type Config struct {
	detect.Config `yaml:",inline"`

	// Classes are the class names in model output order.
	Classes ClassList `yaml:"classes"`

	// MetadataPath names a JSON metadata file the classes are read from when
	// Classes is empty.
	MetadataPath string `yaml:"metadata_path"`
}

// DefaultConfig returns the documented defaults. Classes, model paths and the
// sample rate must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Config: detect.Config{
			FFTWindowSize:  512,
			FFTWindowType:  dsp.WindowHann,
			FFTHopLength:   10,
			MelFrameLength: 110,
			MelFrameWidth:  40,
			EncodeLength:   1000,
			EncodeWidth:    128,
			PreEmphasis:    0.97,
			Threshold:      0.5,
		},
	}
}

// ResolveClasses returns the normalised class list, reading the metadata
// file when no classes are configured.
func (c Config) ResolveClasses() (ClassList, error) {
	if len(c.Classes) == 0 && c.MetadataPath != "" {
		return LoadMetadata(c.MetadataPath)
	}
	return c.Classes.Normalize()
}

// Validate reports every invalid setting. The metadata file is not read.
func (c Config) Validate() error {
	var errs []error
	if err := c.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Classes) > 0 || c.MetadataPath == "" {
		if _, err := c.Classes.Normalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recognizer is the keyword recognizer stage. It implements
// speech.Processor.
type Recognizer struct {
	cfg     Config
	classes ClassList
	models  detect.Models
	front   *detect.Frontend
	cls     *detect.Classifier
	track   detect.Tracker
	closed  bool
}

// New resolves the class list, loads the models named in cfg and returns a
// Recognizer.
func New(cfg Config, loader inference.Loader) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.ResolveClasses(); err != nil {
		return nil, err
	}
	models, err := detect.LoadModels(loader, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("keyword: %w", err)
	}
	r, err := NewWithModels(cfg, models)
	if err != nil {
		_ = models.Close()
		return nil, err
	}
	return r, nil
}

// NewWithModels returns a Recognizer that takes ownership of already loaded
// models.
func NewWithModels(cfg Config, models detect.Models) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	classes, err := cfg.ResolveClasses()
	if err != nil {
		return nil, err
	}
	s, err := cfg.Sizes()
	if err != nil {
		return nil, err
	}
	front, err := detect.NewFrontend(cfg.Config, dsp.ConditionerConfig{
		PreEmphasis: cfg.PreEmphasis,
	}, models.Filter, models.Encode)
	if err != nil {
		return nil, fmt.Errorf("keyword: %w", err)
	}
	cls, err := detect.NewClassifier(models.Detect, s, len(classes))
	if err != nil {
		return nil, fmt.Errorf("keyword: %w", err)
	}
	return &Recognizer{cfg: cfg, classes: classes, models: models, front: front, cls: cls}, nil
}

// Classes returns the class names in model output order.
func (r *Recognizer) Classes() ClassList { return r.classes }

// Process implements speech.Processor.
func (r *Recognizer) Process(sc *speech.Context, frame []int16) error {
	e := r.track.Observe(sc.IsSpeech(), sc.IsActive())
	for _, s := range frame {
		if _, err := r.front.Push(s, sc.IsActive()); err != nil {
			return fmt.Errorf("keyword: %w", err)
		}
	}
	if e.Deactivate {
		return r.detect(sc)
	}
	return nil
}

func (r *Recognizer) detect(sc *speech.Context) error {
	out, err := r.cls.Classify(r.front.EncodeWindow())
	if err != nil {
		return fmt.Errorf("keyword: %w", err)
	}
	idx, confidence := detect.ArgMax(out)
	transcript := r.classes[idx]
	sc.TraceInfo("keyword: %.3f %s", confidence, transcript)

	if confidence > r.cfg.Threshold {
		sc.SetTranscript(transcript)
		sc.SetConfidence(float64(confidence))
		sc.Dispatch(speech.EventRecognize)
	} else {
		sc.Dispatch(speech.EventTimeout)
	}
	r.front.Reset()
	return nil
}

// Reset implements speech.Processor.
func (r *Recognizer) Reset() error {
	r.front.Reset()
	r.front.ResetSignal()
	r.track.Reset()
	return nil
}

// Close implements speech.Processor and closes the models.
func (r *Recognizer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.models.Close()
}

// Ensure Recognizer implements speech.Processor at compile time.
var _ speech.Processor = (*Recognizer)(nil)
