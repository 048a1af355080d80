package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/wakeline/pkg/provider/inference"
	"github.com/MrWong99/wakeline/pkg/provider/vad"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: not registered")

// StageEnv is the input of a stage factory. Loader and VAD are nil unless
// the configuration names an inference runtime or VAD engine.
type StageEnv struct {
	Config *Config
	Loader inference.Loader
	VAD    vad.Engine
}

// StageFactory builds one pipeline stage.
type StageFactory func(StageEnv) (speech.Processor, error)

// Registry maps names to constructor functions for stages, VAD engines and
// inference runtimes. It replaces any form of dynamic lookup: every
// implementation is registered explicitly at startup. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	stages    map[string]StageFactory
	vad       map[string]func(VADConfig) (vad.Engine, error)
	inference map[string]func(InferenceConfig) (inference.Loader, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stages:    make(map[string]StageFactory),
		vad:       make(map[string]func(VADConfig) (vad.Engine, error)),
		inference: make(map[string]func(InferenceConfig) (inference.Loader, error)),
	}
}

// RegisterStage registers a stage factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterStage(name string, factory StageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(VADConfig) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterInference registers an inference runtime factory under name.
func (r *Registry) RegisterInference(name string, factory func(InferenceConfig) (inference.Loader, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inference[name] = factory
}

// CreateStage instantiates the stage registered under name.
// Returns [ErrNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateStage(name string, env StageEnv) (speech.Processor, error) {
	r.mu.RLock()
	factory, ok := r.stages[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stage/%q", ErrNotRegistered, name)
	}
	return factory(env)
}

// CreateVAD instantiates the VAD engine registered under cfg.Name.
func (r *Registry) CreateVAD(cfg VADConfig) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateInference instantiates the inference runtime registered under
// cfg.Name.
func (r *Registry) CreateInference(cfg InferenceConfig) (inference.Loader, error) {
	r.mu.RLock()
	factory, ok := r.inference[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: inference/%q", ErrNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// Stages returns the registered stage names in sorted order.
func (r *Registry) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
