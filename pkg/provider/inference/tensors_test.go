package inference

import "testing"

func TestTensors_SwapStateExchangesBuffers(t *testing.T) {
	tt, err := Allocate([]int{4, 2}, []int{3, 2}, 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	in := tt.State()
	out := tt.Output(1)
	out[0], out[1] = 5, 6

	tt.SwapState()

	if &tt.State()[0] != &out[0] {
		t.Error("state input does not alias previous state output")
	}
	if &tt.Output(1)[0] != &in[0] {
		t.Error("state output does not alias previous state input")
	}
	if got := tt.State(); got[0] != 5 || got[1] != 6 {
		t.Errorf("state = %v, want [5 6]", got)
	}
}

func TestTensors_Stateless(t *testing.T) {
	tt, err := Allocate([]int{4}, []int{1}, -1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if tt.State() != nil {
		t.Error("State() != nil for stateless tensors")
	}
	tt.SwapState()
	if len(tt.Input(0)) != 4 || len(tt.Output(0)) != 1 {
		t.Errorf("buffers changed by SwapState")
	}
}

func TestNewTensors_Validation(t *testing.T) {
	tests := []struct {
		name   string
		in     []int
		out    []int
		state  int
		wantOK bool
	}{
		{name: "index out of range", in: []int{1}, out: []int{1}, state: 1},
		{name: "size mismatch", in: []int{1, 2}, out: []int{1, 3}, state: 1},
		{name: "valid", in: []int{1, 2}, out: []int{1, 2}, state: 1, wantOK: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Allocate(tc.in, tc.out, tc.state)
			if (err == nil) != tc.wantOK {
				t.Errorf("err = %v, wantOK %v", err, tc.wantOK)
			}
		})
	}
}
