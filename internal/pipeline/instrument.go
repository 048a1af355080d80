package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// Instrument wraps loader so that every model it loads records its run
// latency and failures on m under the given component name. A nil m returns
// loader unchanged.
func Instrument(loader inference.Loader, m *observe.Metrics, component string) inference.Loader {
	if m == nil {
		return loader
	}
	return &instrumentedLoader{Loader: loader, metrics: m, component: component}
}

type instrumentedLoader struct {
	inference.Loader
	metrics   *observe.Metrics
	component string
}

func (l *instrumentedLoader) Load(spec inference.Spec) (inference.Model, error) {
	model, err := l.Loader.Load(spec)
	if err != nil {
		return nil, err
	}
	return &instrumentedModel{
		Model:     model,
		metrics:   l.metrics,
		component: l.component,
		name:      modelName(spec.Path),
	}, nil
}

type instrumentedModel struct {
	inference.Model
	metrics   *observe.Metrics
	component string
	name      string
}

func (m *instrumentedModel) Run() error {
	start := time.Now()
	err := m.Model.Run()
	m.metrics.RecordInference(context.Background(), m.component, m.name, time.Since(start), err)
	return err
}

// modelName is the file name of path without its extension.
func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
