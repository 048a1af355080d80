package config

import (
	"slices"

	"github.com/MrWong99/wakeline/internal/keyword"
)

// ConfigDiff describes what changed between two configs.
// Log and trace levels apply immediately. Pipeline settings, audio format
// included, apply to sessions started after the reload. Engines are shared
// and created once, so replacing one needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	TraceLevelChanged bool
	NewTraceLevel     string

	// ThresholdsChanged is true if a detector threshold changed.
	ThresholdsChanged bool

	// PipelineChanged is true if the stage list or any stage setting other
	// than a threshold changed.
	PipelineChanged bool

	// RestartRequired is true if a setting changed that only takes effect on
	// restart: listen address, TLS, inference runtime or VAD engine name.
	RestartRequired bool
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.TraceLevelChanged || d.ThresholdsChanged || d.PipelineChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.TraceLevel != new.Server.TraceLevel {
		d.TraceLevelChanged = true
		d.NewTraceLevel = new.Server.TraceLevel
	}

	if old.Wakeword.Threshold != new.Wakeword.Threshold || old.Keyword.Threshold != new.Keyword.Threshold {
		d.ThresholdsChanged = true
	}

	ow, nw := old.Wakeword, new.Wakeword
	ow.Threshold, nw.Threshold = 0, 0
	ok, nk := old.Keyword, new.Keyword
	ok.Threshold, nk.Threshold = 0, 0
	if !slices.Equal(old.Pipeline.Stages, new.Pipeline.Stages) ||
		old.Audio != new.Audio ||
		old.VAD != new.VAD ||
		old.Activation != new.Activation ||
		ow != nw ||
		!keywordEqual(ok, nk) {
		d.PipelineChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) ||
		old.Inference != new.Inference ||
		old.VAD.Name != new.VAD.Name {
		d.RestartRequired = true
	}
	return d
}

func keywordEqual(a, b keyword.Config) bool {
	return a.Config == b.Config && a.MetadataPath == b.MetadataPath && slices.Equal(a.Classes, b.Classes)
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
