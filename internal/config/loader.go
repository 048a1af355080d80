package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/wakeline/pkg/speech"
)

// KnownStages are the stage names registered by the pipeline package.
var KnownStages = []string{StageVAD, StageWakeword, StageKeyword, StageTimeout, StagePassthrough}

// Load parses the file at path with [Parse].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands $VAR and ${VAR} references in data, decodes it on top of
// [Default] and validates the result. Unknown keys are an error. Keys the
// document leaves out keep their defaults, and an empty document yields the
// defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined. Stage names that are not
// built in only produce a warning since they may be registered later.
func (c *Config) Validate() error {
	errs := slices.Concat(c.Server.problems(), c.Audio.problems(), c.stageProblems())
	return errors.Join(errs...)
}

func (s ServerConfig) problems() []error {
	var errs []error
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is not one of debug, info, warn, error", s.LogLevel))
	}
	if _, ok := speech.ParseTraceLevel(s.TraceLevel); !ok {
		errs = append(errs, fmt.Errorf("server.trace_level %q is not one of debug, perf, info, warn, error, none", s.TraceLevel))
	}
	if s.TLS != nil && (s.TLS.CertFile == "" || s.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls needs cert_file and key_file"))
	}
	return errs
}

func (a AudioConfig) problems() []error {
	switch {
	case a.SampleRate <= 0:
		return []error{fmt.Errorf("audio.sample_rate %d must be positive", a.SampleRate)}
	case a.FrameWidth <= 0:
		return []error{fmt.Errorf("audio.frame_width %d must be positive", a.FrameWidth)}
	case a.FrameSamples() == 0:
		return []error{fmt.Errorf("audio.frame_width %dms holds no samples at %dHz", a.FrameWidth, a.SampleRate)}
	}
	return nil
}

// stageProblems checks the stage list and the sections of the stages in it.
func (c *Config) stageProblems() []error {
	var errs []error
	stages := c.Pipeline.Stages
	if len(stages) == 0 {
		errs = append(errs, errors.New("pipeline.stages is empty"))
	}
	first := make(map[string]int, len(stages))
	for i, name := range stages {
		if j, dup := first[name]; dup {
			errs = append(errs, fmt.Errorf("pipeline.stages[%d] repeats %q from pipeline.stages[%d]", i, name, j))
			continue
		}
		first[name] = i
		if !slices.Contains(KnownStages, name) {
			slog.Warn("stage is not built in and must be registered before the pipeline is built",
				"stage", name, "built_in", KnownStages)
		}
	}

	if c.HasStage(StageVAD) {
		if c.VAD.Name == "" {
			errs = append(errs, errors.New("vad.name is required by the vad stage"))
		}
		if c.VAD.SilenceThreshold > c.VAD.SpeechThreshold {
			errs = append(errs, fmt.Errorf("vad.silence_threshold %v exceeds vad.speech_threshold %v",
				c.VAD.SilenceThreshold, c.VAD.SpeechThreshold))
		}
	}
	if a := c.Activation; c.HasStage(StageTimeout) && (a.MinMs < 0 || a.MaxMs < a.MinMs) {
		errs = append(errs, fmt.Errorf("activation needs 0 <= min_ms <= max_ms, got %d and %d", a.MinMs, a.MaxMs))
	}

	wake, kw := c.HasStage(StageWakeword), c.HasStage(StageKeyword)
	if (wake || kw) && c.Inference.Name == "" {
		errs = append(errs, errors.New("inference.name is required by the detector stages"))
	}
	if wake {
		if err := c.WakewordConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("wakeword: %w", err))
		}
	}
	if kw {
		if err := c.KeywordConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("keyword: %w", err))
		}
	}
	if wake && kw && !c.HasStage(StageTimeout) {
		slog.Warn("wakeword and keyword stages run without a timeout stage; an activation then lasts until another stage ends it")
	}
	return errs
}
