package dsp

import (
	"fmt"
	"math"
)

// WindowHann is the only supported window function name.
const WindowHann = "hann"

// Window returns the named window function of length n.
func Window(name string, n int) ([]float32, error) {
	switch name {
	case WindowHann:
		return Hann(n), nil
	default:
		return nil, fmt.Errorf("dsp: unsupported window type %q", name)
	}
}

// Hann returns the symmetric Hann window sin²(πi/(n-1)) of length n.
func Hann(n int) []float32 {
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		s := math.Sin(math.Pi * float64(i) / float64(n-1))
		w[i] = float32(s * s)
	}
	return w
}
