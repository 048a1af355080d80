package main

import (
	"io"
	"log/slog"
	"sync"

	"github.com/MrWong99/wakeline/internal/config"
)

// engines creates the VAD engine and inference runtime the first time a
// config needs them and shares them across every pipeline afterwards. A
// reload that adds a vad or detector stage therefore works without a
// restart; switching engine names does not and is reported by config.Diff.
type engines struct {
	reg *config.Registry

	mu  sync.Mutex
	env config.StageEnv
}

func newEngines(reg *config.Registry) *engines {
	return &engines{reg: reg}
}

// For returns the engines needed by cfg's stages.
func (e *engines) For(cfg *config.Config) (config.StageEnv, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.HasStage(config.StageVAD) && e.env.VAD == nil {
		engine, err := e.reg.CreateVAD(cfg.VAD)
		if err != nil {
			return config.StageEnv{}, err
		}
		e.env.VAD = engine
	}
	if (cfg.HasStage(config.StageWakeword) || cfg.HasStage(config.StageKeyword)) && e.env.Loader == nil {
		loader, err := e.reg.CreateInference(cfg.Inference)
		if err != nil {
			return config.StageEnv{}, err
		}
		e.env.Loader = loader
	}
	return e.env, nil
}

// Close releases the inference runtime if one was created.
func (e *engines) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.env.Loader.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("inference runtime close", "err", err)
		}
	}
	e.env = config.StageEnv{}
}
