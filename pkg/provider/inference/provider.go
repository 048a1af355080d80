// Package inference defines the boundary to the neural network runtime that
// executes the detection models.
//
// A [Model] exposes fixed-size float32 input and output buffers. Callers write
// every input buffer completely, call Run, and read the outputs before the next
// Run. Models with recurrent state expose the current state input through
// State; after every Run the state output becomes the next state input by
// swapping buffer roles, never by copying.
//
// Models are not safe for concurrent use. Each detector owns its models
// exclusively and must Close them deterministically when its session ends.
package inference

import "errors"

// ErrLoad is wrapped by every [Loader] error caused by a missing, unreadable
// or malformed model file.
var ErrLoad = errors.New("inference: model load failed")

// Spec identifies a model file and its tensor layout.
type Spec struct {
	// Path is the filesystem path of the model file.
	Path string

	// Stateful marks models that carry a recurrent state tensor.
	Stateful bool

	// StateIndex is the position of the state tensor in both the input and the
	// output list. Only meaningful when Stateful is true.
	StateIndex int
}

// Model is a loaded network with bound input and output buffers.
type Model interface {
	// Input returns the mutable buffer of input tensor i. The buffer stays valid
	// until Close. For stateful models Input at the state index aliases State.
	Input(i int) []float32

	// Output returns the buffer of output tensor i, overwritten by every Run.
	Output(i int) []float32

	// State returns the state tensor that the next Run reads, or nil when the
	// model is not stateful. Callers zero it to reset the recurrent state.
	State() []float32

	// Run executes a synchronous forward pass.
	Run() error

	// Close releases native resources. Calling Close more than once is safe.
	Close() error
}

// Loader creates models from files.
//
// Implementations must be safe for concurrent use so that the models of
// several detectors can be loaded in parallel.
type Loader interface {
	// Load reads the model described by spec. Errors wrap [ErrLoad].
	Load(spec Spec) (Model, error)
}
