package config_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/wakeline/internal/activation"
	"github.com/MrWong99/wakeline/internal/config"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
	"github.com/MrWong99/wakeline/pkg/provider/inference/mock"
	"github.com/MrWong99/wakeline/pkg/provider/vad"
	vadmock "github.com/MrWong99/wakeline/pkg/provider/vad/mock"
	"github.com/MrWong99/wakeline/pkg/speech"
)

func TestRegistry_Stage(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterStage("passthrough", func(config.StageEnv) (speech.Processor, error) {
		return &activation.Passthrough{}, nil
	})

	p, err := reg.CreateStage("passthrough", config.StageEnv{})
	if err != nil || p == nil {
		t.Fatalf("CreateStage = %v, %v", p, err)
	}
	if _, err := reg.CreateStage("asr", config.StageEnv{}); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("unknown stage err = %v, want ErrNotRegistered", err)
	}
	if names := reg.Stages(); len(names) != 1 || names[0] != "passthrough" {
		t.Errorf("Stages() = %v", names)
	}
}

func TestRegistry_VADAndInference(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	engine := &vadmock.Engine{}
	reg.RegisterVAD("mock", func(config.VADConfig) (vad.Engine, error) { return engine, nil })
	loader := &mock.Loader{}
	reg.RegisterInference("mock", func(config.InferenceConfig) (inference.Loader, error) { return loader, nil })

	if got, err := reg.CreateVAD(config.VADConfig{Name: "mock"}); err != nil || got != engine {
		t.Errorf("CreateVAD = %v, %v", got, err)
	}
	if got, err := reg.CreateInference(config.InferenceConfig{Name: "mock"}); err != nil || got != loader {
		t.Errorf("CreateInference = %v, %v", got, err)
	}
	if _, err := reg.CreateVAD(config.VADConfig{Name: "silero"}); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("unknown vad err = %v", err)
	}
	if _, err := reg.CreateInference(config.InferenceConfig{Name: "tflite"}); !errors.Is(err, config.ErrNotRegistered) {
		t.Errorf("unknown inference err = %v", err)
	}
}
