// Package mock provides test doubles for the inference package interfaces.
//
// Use Model to script model outputs and count forward passes. Use Loader to
// hand pre-built models to code under test keyed by path.
//
// Example:
//
//	detect := mock.NewModel([]int{128 * 100}, []int{1}, -1)
//	detect.RunFunc = func(m *mock.Model) error {
//	    m.Output(0)[0] = 0.9
//	    return nil
//	}
//	loader := &mock.Loader{Models: map[string]*mock.Model{"detect": detect}}
package mock

import (
	"fmt"
	"sync"

	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// Model is a mock implementation of inference.Model backed by plain Go
// slices.
type Model struct {
	mu sync.Mutex
	t  *inference.Tensors

	// RunFunc, if set, is called by Run before the state swap. It typically
	// writes the outputs.
	RunFunc func(m *Model) error

	// RunErr, if non-nil, is returned by Run without calling RunFunc.
	RunErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// RunCalls is the number of times Run was called.
	RunCalls int

	// RunInputs holds a copy of input 0 for every Run call in order.
	RunInputs [][]float32

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewModel returns a Model with zeroed buffers of the given sizes. stateIndex
// is the state tensor position, or -1. It panics on an invalid layout.
func NewModel(inputSizes, outputSizes []int, stateIndex int) *Model {
	t, err := inference.Allocate(inputSizes, outputSizes, stateIndex)
	if err != nil {
		panic(err)
	}
	return &Model{t: t}
}

// Input returns input buffer i.
func (m *Model) Input(i int) []float32 { return m.t.Input(i) }

// Output returns output buffer i.
func (m *Model) Output(i int) []float32 { return m.t.Output(i) }

// State returns the current state input, or nil.
func (m *Model) State() []float32 { return m.t.State() }

// Run records the call, invokes RunFunc and swaps the state buffers.
func (m *Model) Run() error {
	m.mu.Lock()
	m.RunCalls++
	in := make([]float32, len(m.t.Input(0)))
	copy(in, m.t.Input(0))
	m.RunInputs = append(m.RunInputs, in)
	runErr, fn := m.RunErr, m.RunFunc
	m.mu.Unlock()

	if runErr != nil {
		return runErr
	}
	if fn != nil {
		if err := fn(m); err != nil {
			return err
		}
	}
	m.t.SwapState()
	return nil
}

// Close records the call and returns CloseErr.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCallCount++
	return m.CloseErr
}

// Calls returns the number of Run calls. Thread-safe.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RunCalls
}

// ResetCalls clears all recorded call history. Thread-safe.
func (m *Model) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls = 0
	m.RunInputs = nil
	m.CloseCallCount = 0
}

// Ensure Model implements inference.Model at compile time.
var _ inference.Model = (*Model)(nil)

// Loader is a mock implementation of inference.Loader.
type Loader struct {
	mu sync.Mutex

	// Models maps a Spec.Path to the model returned for it. Unknown paths
	// produce an error wrapping inference.ErrLoad.
	Models map[string]*Model

	// LoadErr, if non-nil, is returned for every Load call.
	LoadErr error

	// LoadCalls records every Spec passed to Load in order.
	LoadCalls []inference.Spec
}

// Load records the call and returns the model registered for spec.Path.
func (l *Loader) Load(spec inference.Spec) (inference.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LoadCalls = append(l.LoadCalls, spec)
	if l.LoadErr != nil {
		return nil, l.LoadErr
	}
	m, ok := l.Models[spec.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %q not found", inference.ErrLoad, spec.Path)
	}
	return m, nil
}

// Ensure Loader implements inference.Loader at compile time.
var _ inference.Loader = (*Loader)(nil)
