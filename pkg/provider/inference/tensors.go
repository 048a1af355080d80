package inference

import "fmt"

// Tensors holds the Go-side views of a model's input and output buffers and
// implements the state role swap shared by [Model] implementations.
type Tensors struct {
	inputs  [][]float32
	outputs [][]float32
	state   int
}

// NewTensors wraps the given buffers. stateIndex is the position of the state
// tensor in both lists, or -1 for stateless models. The state input and
// output must have equal length.
func NewTensors(inputs, outputs [][]float32, stateIndex int) (*Tensors, error) {
	if stateIndex >= 0 {
		if stateIndex >= len(inputs) || stateIndex >= len(outputs) {
			return nil, fmt.Errorf("inference: state index %d out of range (%d inputs, %d outputs)",
				stateIndex, len(inputs), len(outputs))
		}
		if len(inputs[stateIndex]) != len(outputs[stateIndex]) {
			return nil, fmt.Errorf("inference: state input has %d values, state output %d",
				len(inputs[stateIndex]), len(outputs[stateIndex]))
		}
	}
	return &Tensors{inputs: inputs, outputs: outputs, state: stateIndex}, nil
}

// Allocate returns Tensors backed by freshly allocated zeroed buffers.
func Allocate(inputSizes, outputSizes []int, stateIndex int) (*Tensors, error) {
	alloc := func(sizes []int) [][]float32 {
		bufs := make([][]float32, len(sizes))
		for i, n := range sizes {
			bufs[i] = make([]float32, n)
		}
		return bufs
	}
	return NewTensors(alloc(inputSizes), alloc(outputSizes), stateIndex)
}

// Input returns input buffer i.
func (t *Tensors) Input(i int) []float32 { return t.inputs[i] }

// Output returns output buffer i.
func (t *Tensors) Output(i int) []float32 { return t.outputs[i] }

// NumInputs returns the number of input buffers, including the state.
func (t *Tensors) NumInputs() int { return len(t.inputs) }

// NumOutputs returns the number of output buffers, including the state.
func (t *Tensors) NumOutputs() int { return len(t.outputs) }

// State returns the state input buffer, or nil for stateless models.
func (t *Tensors) State() []float32 {
	if t.state < 0 {
		return nil
	}
	return t.inputs[t.state]
}

// StateIndex returns the state position, or -1.
func (t *Tensors) StateIndex() int { return t.state }

// SwapState exchanges the roles of the state input and output buffers so that
// the state produced by the last run is read by the next one.
func (t *Tensors) SwapState() {
	if t.state < 0 {
		return
	}
	t.inputs[t.state], t.outputs[t.state] = t.outputs[t.state], t.inputs[t.state]
}
