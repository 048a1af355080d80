// Package config provides the configuration schema, loader, stage registry
// and file watcher for the wakeline detection service.
package config

import (
	"slices"

	"github.com/MrWong99/wakeline/internal/activation"
	"github.com/MrWong99/wakeline/internal/keyword"
	"github.com/MrWong99/wakeline/internal/wakeword"
	"github.com/MrWong99/wakeline/pkg/provider/vad/energy"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Built-in stage names accepted in pipeline.stages.
const (
	StageVAD         = "vad"
	StageWakeword    = "wakeword"
	StageKeyword     = "keyword"
	StageTimeout     = "timeout"
	StagePassthrough = "passthrough"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [Parse].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Inference  InferenceConfig  `yaml:"inference"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	VAD        VADConfig        `yaml:"vad"`
	Activation ActivationConfig `yaml:"activation"`
	Wakeword   wakeword.Config  `yaml:"wakeword"`
	Keyword    keyword.Config   `yaml:"keyword"`
}

// ServerConfig holds network and diagnostics settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serve mode listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TraceLevel gates detector trace messages: debug, perf, info, warn,
	// error or none.
	TraceLevel string `yaml:"trace_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds paths to TLS certificate and key files.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AudioConfig describes the PCM frames fed to the pipeline.
type AudioConfig struct {
	// SampleRate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameWidth is the frame duration in milliseconds.
	FrameWidth int `yaml:"frame_width"`
}

// FrameSamples returns the number of samples per frame.
func (a AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameWidth / 1000
}

// InferenceConfig selects the model runtime.
type InferenceConfig struct {
	// Name is the registered runtime name (e.g., "onnx").
	Name string `yaml:"name"`

	// LibraryPath is the runtime's shared library. Empty uses the system
	// default.
	LibraryPath string `yaml:"library_path"`
}

// PipelineConfig lists the stages run for every frame, in order.
type PipelineConfig struct {
	Stages []string `yaml:"stages"`
}

// VADConfig configures the vad stage.
type VADConfig struct {
	// Name is the registered VAD engine name (e.g., "energy").
	Name             string  `yaml:"name"`
	SpeechThreshold  float64 `yaml:"speech_threshold"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
	SpeechFrames     int     `yaml:"speech_frames"`
	SilenceFrames    int     `yaml:"silence_frames"`
}

// ActivationConfig bounds the length of an activation for the timeout
// stage.
type ActivationConfig struct {
	MinMs int `yaml:"min_ms"`
	MaxMs int `yaml:"max_ms"`
}

// Default returns a configuration with every documented default filled in.
// Model paths and keyword classes have no defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
			TraceLevel: "none",
		},
		Audio:     AudioConfig{SampleRate: 16000, FrameWidth: 20},
		Inference: InferenceConfig{Name: "onnx"},
		Pipeline:  PipelineConfig{Stages: []string{StageVAD, StageWakeword, StagePassthrough}},
		VAD: VADConfig{
			Name:             "energy",
			SpeechThreshold:  energy.DefaultSpeechThreshold,
			SilenceThreshold: energy.DefaultSilenceThreshold,
			SpeechFrames:     energy.DefaultSpeechFrames,
			SilenceFrames:    energy.DefaultSilenceFrames,
		},
		Activation: ActivationConfig{
			MinMs: activation.DefaultMinActiveMs,
			MaxMs: activation.DefaultMaxActiveMs,
		},
		Wakeword: wakeword.DefaultConfig(),
		Keyword:  keyword.DefaultConfig(),
	}
}

// WakewordConfig returns the wakeword section with the audio sample rate
// applied.
func (c *Config) WakewordConfig() wakeword.Config {
	w := c.Wakeword
	w.SampleRate = c.Audio.SampleRate
	return w
}

// KeywordConfig returns the keyword section with the audio sample rate
// applied.
func (c *Config) KeywordConfig() keyword.Config {
	k := c.Keyword
	k.SampleRate = c.Audio.SampleRate
	return k
}

// HasStage reports whether name appears in pipeline.stages.
func (c *Config) HasStage(name string) bool {
	return slices.Contains(c.Pipeline.Stages, name)
}
