//go:build cgo

// Package onnx implements inference.Loader on top of ONNX Runtime.
//
// Tensor shapes are read from the model file; dynamic dimensions are bound to
// 1. Only float32 tensors are supported. Stateful models get two sessions
// that bind the two state buffers in opposite roles, so that swapping the
// state after a run costs nothing and no data is copied.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MrWong99/wakeline/pkg/provider/inference"
)

// Loader loads ONNX models. The ONNX Runtime environment is initialised on
// the first Load and torn down by Close.
type Loader struct {
	mu          sync.Mutex
	libPath     string
	initialized bool
}

// NewLoader returns a Loader that uses the ONNX Runtime shared library at
// libPath. An empty libPath uses the platform default search path.
func NewLoader(libPath string) *Loader {
	return &Loader{libPath: libPath}
}

func (l *Loader) init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized || ort.IsInitialized() {
		l.initialized = true
		return nil
	}
	if l.libPath != "" {
		ort.SetSharedLibraryPath(l.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: initialise onnx runtime: %v", inference.ErrLoad, err)
	}
	l.initialized = true
	slog.Debug("onnx runtime initialised", "lib", l.libPath)
	return nil
}

// Load implements inference.Loader.
func (l *Loader) Load(spec inference.Spec) (inference.Model, error) {
	if err := l.init(); err != nil {
		return nil, err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", inference.ErrLoad, spec.Path, err)
	}
	state := -1
	if spec.Stateful {
		state = spec.StateIndex
	}
	m, err := newModel(spec.Path, inInfo, outInfo, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", inference.ErrLoad, spec.Path, err)
	}
	return m, nil
}

// Close destroys the ONNX Runtime environment. All models must be closed
// first.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return nil
	}
	l.initialized = false
	return ort.DestroyEnvironment()
}

// Ensure Loader implements inference.Loader at compile time.
var _ inference.Loader = (*Loader)(nil)

// Model is an ONNX Runtime backed inference.Model.
type Model struct {
	*inference.Tensors

	values   []*ort.Tensor[float32]
	sessions []*ort.AdvancedSession
	active   int
	once     sync.Once
	closeErr error
}

func newModel(path string, inInfo, outInfo []ort.InputOutputInfo, state int) (_ *Model, err error) {
	m := &Model{}
	defer func() {
		if err != nil {
			_ = m.Close()
		}
	}()

	if state >= 0 && (state >= len(inInfo) || state >= len(outInfo)) {
		return nil, fmt.Errorf("state index %d out of range", state)
	}

	alloc := func(info ort.InputOutputInfo) (*ort.Tensor[float32], error) {
		if info.DataType != ort.TensorElementDataTypeFloat {
			return nil, fmt.Errorf("tensor %q: unsupported element type %v", info.Name, info.DataType)
		}
		t, err := ort.NewEmptyTensor[float32](concrete(info.Dimensions))
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", info.Name, err)
		}
		m.values = append(m.values, t)
		return t, nil
	}

	inNames := make([]string, len(inInfo))
	inVals := make([]ort.Value, len(inInfo))
	inBufs := make([][]float32, len(inInfo))
	for i, info := range inInfo {
		t, err := alloc(info)
		if err != nil {
			return nil, err
		}
		inNames[i], inVals[i], inBufs[i] = info.Name, t, t.GetData()
	}
	outNames := make([]string, len(outInfo))
	outVals := make([]ort.Value, len(outInfo))
	outBufs := make([][]float32, len(outInfo))
	for i, info := range outInfo {
		t, err := alloc(info)
		if err != nil {
			return nil, err
		}
		outNames[i], outVals[i], outBufs[i] = info.Name, t, t.GetData()
	}

	m.Tensors, err = inference.NewTensors(inBufs, outBufs, state)
	if err != nil {
		return nil, err
	}

	s, err := ort.NewAdvancedSession(path, inNames, outNames, inVals, outVals, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.sessions = append(m.sessions, s)

	if state >= 0 {
		// Second session reads the state the first one wrote and vice versa.
		swappedIn := append([]ort.Value(nil), inVals...)
		swappedOut := append([]ort.Value(nil), outVals...)
		swappedIn[state], swappedOut[state] = outVals[state], inVals[state]
		s, err := ort.NewAdvancedSession(path, inNames, outNames, swappedIn, swappedOut, nil)
		if err != nil {
			return nil, fmt.Errorf("create swapped session: %w", err)
		}
		m.sessions = append(m.sessions, s)
	}
	return m, nil
}

// Run executes the session matching the current state roles.
func (m *Model) Run() error {
	if err := m.sessions[m.active].Run(); err != nil {
		return fmt.Errorf("onnx: run: %w", err)
	}
	if len(m.sessions) > 1 {
		m.SwapState()
		m.active ^= 1
	}
	return nil
}

// Close destroys all sessions and tensors.
func (m *Model) Close() error {
	m.once.Do(func() {
		var errs []error
		for _, s := range m.sessions {
			errs = append(errs, s.Destroy())
		}
		for _, v := range m.values {
			errs = append(errs, v.Destroy())
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// Ensure Model implements inference.Model at compile time.
var _ inference.Model = (*Model)(nil)

func concrete(dims ort.Shape) ort.Shape {
	s := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		s[i] = d
	}
	return s
}
