package pipeline

import (
	"errors"

	"github.com/MrWong99/wakeline/internal/activation"
	"github.com/MrWong99/wakeline/internal/config"
	"github.com/MrWong99/wakeline/internal/keyword"
	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/internal/wakeword"
	"github.com/MrWong99/wakeline/pkg/provider/vad"
	"github.com/MrWong99/wakeline/pkg/speech"
)

var (
	errNoVAD    = errors.New("no vad engine configured")
	errNoLoader = errors.New("no inference runtime configured")
)

// RegisterBuiltins registers the built-in stages on reg. When m is non-nil
// the detector models are instrumented with it.
func RegisterBuiltins(reg *config.Registry, m *observe.Metrics) {
	reg.RegisterStage(config.StageVAD, func(env config.StageEnv) (speech.Processor, error) {
		if env.VAD == nil {
			return nil, errNoVAD
		}
		c := env.Config
		return activation.NewVoiceActivity(env.VAD, vad.Config{
			SampleRate:       c.Audio.SampleRate,
			FrameSizeMs:      c.Audio.FrameWidth,
			SpeechThreshold:  c.VAD.SpeechThreshold,
			SilenceThreshold: c.VAD.SilenceThreshold,
			SpeechFrames:     c.VAD.SpeechFrames,
			SilenceFrames:    c.VAD.SilenceFrames,
		})
	})
	reg.RegisterStage(config.StageWakeword, func(env config.StageEnv) (speech.Processor, error) {
		if env.Loader == nil {
			return nil, errNoLoader
		}
		return wakeword.New(env.Config.WakewordConfig(), Instrument(env.Loader, m, config.StageWakeword))
	})
	reg.RegisterStage(config.StageKeyword, func(env config.StageEnv) (speech.Processor, error) {
		if env.Loader == nil {
			return nil, errNoLoader
		}
		return keyword.New(env.Config.KeywordConfig(), Instrument(env.Loader, m, config.StageKeyword))
	})
	reg.RegisterStage(config.StageTimeout, func(env config.StageEnv) (speech.Processor, error) {
		a := env.Config.Activation
		return activation.NewTimeout(a.MinMs, a.MaxMs, env.Config.Audio.FrameWidth)
	})
	reg.RegisterStage(config.StagePassthrough, func(config.StageEnv) (speech.Processor, error) {
		return &activation.Passthrough{}, nil
	})
}
