//go:build !cgo

package onnx

import (
	"fmt"

	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// Loader is unavailable without cgo; every Load fails.
type Loader struct{}

// NewLoader returns a Loader whose Load always fails.
func NewLoader(string) *Loader { return &Loader{} }

// Load implements inference.Loader.
func (*Loader) Load(spec inference.Spec) (inference.Model, error) {
	return nil, fmt.Errorf("%w: %s: onnx runtime requires cgo", inference.ErrLoad, spec.Path)
}

// Close is a no-op.
func (*Loader) Close() error { return nil }

// Ensure Loader implements inference.Loader at compile time.
var _ inference.Loader = (*Loader)(nil)
