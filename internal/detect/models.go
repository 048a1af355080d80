package detect

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// EncodeStateIndex is the position of the state tensor in the encoder's input
// and output lists.
const EncodeStateIndex = 1

// Models are the three networks of one detector.
type Models struct {
	Filter inference.Model
	Encode inference.Model
	Detect inference.Model
}

// LoadModels loads the filter, encode and detect models of c in parallel. On
// failure every model that did load is closed.
func LoadModels(loader inference.Loader, c Config) (Models, error) {
	var m Models
	var g errgroup.Group
	load := func(dst *inference.Model, spec inference.Spec) {
		g.Go(func() error {
			model, err := loader.Load(spec)
			if err != nil {
				return err
			}
			*dst = model
			return nil
		})
	}
	load(&m.Filter, inference.Spec{Path: c.FilterPath})
	load(&m.Encode, inference.Spec{Path: c.EncodePath, Stateful: true, StateIndex: EncodeStateIndex})
	load(&m.Detect, inference.Spec{Path: c.DetectPath})
	if err := g.Wait(); err != nil {
		_ = m.Close()
		return Models{}, fmt.Errorf("detect: load models: %w", err)
	}
	return m, nil
}

// Close closes every non-nil model.
func (m Models) Close() error {
	var errs []error
	for _, model := range []inference.Model{m.Filter, m.Encode, m.Detect} {
		if model != nil {
			errs = append(errs, model.Close())
		}
	}
	return errors.Join(errs...)
}
