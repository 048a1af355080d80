// Package pipeline runs an ordered list of speech processors over fixed-size
// PCM frames and owns the speech context they share.
//
// A Pipeline is not safe for concurrent use. Streaming sessions build one
// Pipeline per connection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/wakeline/internal/config"
	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// ErrFrameSize is returned by [Pipeline.Process] when a frame does not hold
// exactly one frame width of samples.
var ErrFrameSize = errors.New("pipeline: wrong frame size")

// Stage is a named pipeline processor.
type Stage struct {
	Name      string
	Processor speech.Processor
}

// Pipeline feeds frames through its stages in order.
type Pipeline struct {
	sc           *speech.Context
	stages       []Stage
	frameSamples int
	sampleRate   int
	metrics      *observe.Metrics
}

// Option configures a [Pipeline].
type Option func(*options)

type options struct {
	listeners  []speech.Listener
	traceLevel speech.TraceLevel
	metrics    *observe.Metrics
	sampleRate int
}

// WithListener registers an event listener on the pipeline's context.
func WithListener(l speech.Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// WithTraceLevel sets the initial trace level. The default is
// [speech.TraceNone].
func WithTraceLevel(level speech.TraceLevel) Option {
	return func(o *options) { o.traceLevel = level }
}

// WithSampleRate records the rate the stages expect. [Build] sets it from
// the audio config.
func WithSampleRate(hz int) Option {
	return func(o *options) { o.sampleRate = hz }
}

// WithMetrics records frame and event metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns a Pipeline over stages. It takes ownership of the stages.
func New(frameSamples int, stages []Stage, opts ...Option) (*Pipeline, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("pipeline: frame size %d must be positive", frameSamples)
	}
	if len(stages) == 0 {
		return nil, errors.New("pipeline: no stages")
	}
	o := options{traceLevel: speech.TraceNone}
	for _, opt := range opts {
		opt(&o)
	}

	scOpts := []speech.Option{speech.WithTraceLevel(o.traceLevel)}
	for _, l := range o.listeners {
		scOpts = append(scOpts, speech.WithListener(l))
	}
	p := &Pipeline{
		sc:           speech.NewContext(scOpts...),
		stages:       stages,
		frameSamples: frameSamples,
		sampleRate:   o.sampleRate,
		metrics:      o.metrics,
	}
	if p.metrics != nil {
		p.sc.AddListener(MetricsListener(p.metrics))
	}
	return p, nil
}

// Build creates every stage named in cfg.Pipeline.Stages through reg.
// Already created stages are closed if a later one fails.
func Build(cfg *config.Config, reg *config.Registry, env config.StageEnv, opts ...Option) (*Pipeline, error) {
	env.Config = cfg
	stages := make([]Stage, 0, len(cfg.Pipeline.Stages))
	for _, name := range cfg.Pipeline.Stages {
		proc, err := reg.CreateStage(name, env)
		if err != nil {
			for _, s := range stages {
				_ = s.Processor.Close()
			}
			return nil, fmt.Errorf("pipeline: create stage %q: %w", name, err)
		}
		stages = append(stages, Stage{Name: name, Processor: proc})
	}

	defaults := []Option{WithSampleRate(cfg.Audio.SampleRate)}
	if level, ok := speech.ParseTraceLevel(cfg.Server.TraceLevel); ok {
		defaults = append(defaults, WithTraceLevel(level))
	}
	opts = append(defaults, opts...)
	p, err := New(cfg.Audio.FrameSamples(), stages, opts...)
	if err != nil {
		for _, s := range stages {
			_ = s.Processor.Close()
		}
		return nil, err
	}
	return p, nil
}

// Context returns the speech context shared by the stages.
func (p *Pipeline) Context() *speech.Context { return p.sc }

// FrameSamples returns the number of samples Process expects.
func (p *Pipeline) FrameSamples() int { return p.frameSamples }

// SampleRate is the rate Process expects, or 0 when the pipeline was built
// without [WithSampleRate].
func (p *Pipeline) SampleRate() int { return p.sampleRate }

// Stages returns the stage names in processing order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Process runs frame through every stage. The first stage error ends the
// session: it is set on the context, [speech.EventError] is dispatched and
// every later call returns the same error until [Pipeline.Reset].
func (p *Pipeline) Process(ctx context.Context, frame []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame) != p.frameSamples {
		return fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(frame), p.frameSamples)
	}
	if err := p.sc.Err(); err != nil {
		return err
	}

	start := time.Now()
	for _, s := range p.stages {
		if err := s.Processor.Process(p.sc, frame); err != nil {
			err = fmt.Errorf("pipeline: stage %s: %w", s.Name, err)
			p.sc.Fail(err)
			return err
		}
	}
	if p.metrics != nil {
		p.metrics.RecordFrame(ctx, time.Since(start))
	}
	return nil
}

// Reset clears the context and resets every stage.
func (p *Pipeline) Reset() error {
	p.sc.Reset()
	var errs []error
	for _, s := range p.stages {
		if err := s.Processor.Reset(); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: reset %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every stage and joins their errors.
func (p *Pipeline) Close() error {
	var errs []error
	for _, s := range p.stages {
		if err := s.Processor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// MetricsListener returns a listener that counts activations, recognitions
// and timeouts on m.
func MetricsListener(m *observe.Metrics) speech.Listener {
	return func(ev speech.Event, sc *speech.Context) {
		ctx := context.Background()
		switch ev {
		case speech.EventActivate:
			m.Activations.Add(ctx, 1)
		case speech.EventRecognize:
			m.RecordRecognition(ctx, sc.Transcript())
		case speech.EventTimeout:
			m.Timeouts.Add(ctx, 1)
		}
	}
}
