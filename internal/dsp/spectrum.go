package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrumAnalyzer computes the magnitude spectrum of a windowed sample
// frame.
type SpectrumAnalyzer struct {
	window []float32
	fft    *fourier.FFT
	frame  []float64
	coeff  []complex128
	packed []float32
}

// NewSpectrumAnalyzer returns an analyser for frames of size n using the named
// window function. n must be even and at least 2.
func NewSpectrumAnalyzer(windowType string, n int) (*SpectrumAnalyzer, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("dsp: fft window size %d must be even and >= 2", n)
	}
	w, err := Window(windowType, n)
	if err != nil {
		return nil, err
	}
	return &SpectrumAnalyzer{
		window: w,
		fft:    fourier.NewFFT(n),
		frame:  make([]float64, n),
		coeff:  make([]complex128, n/2+1),
		packed: make([]float32, n),
	}, nil
}

// Size returns the frame size.
func (a *SpectrumAnalyzer) Size() int { return len(a.window) }

// Bins returns the magnitude spectrum length, Size/2+1.
func (a *SpectrumAnalyzer) Bins() int { return len(a.window)/2 + 1 }

// Transform windows samples and returns the packed real FFT: index 0 holds the
// DC component, index 1 the Nyquist component, followed by interleaved real
// and imaginary parts of bins 1 to n/2-1. The returned slice is reused by the
// next call.
func (a *SpectrumAnalyzer) Transform(samples []float32) []float32 {
	for i, s := range samples {
		a.frame[i] = float64(s * a.window[i])
	}
	a.fft.Coefficients(a.coeff, a.frame)
	n := len(a.packed)
	a.packed[0] = float32(real(a.coeff[0]))
	a.packed[1] = float32(real(a.coeff[n/2]))
	for k := 1; k < n/2; k++ {
		a.packed[2*k] = float32(real(a.coeff[k]))
		a.packed[2*k+1] = float32(imag(a.coeff[k]))
	}
	return a.packed
}

// Magnitude writes the magnitude spectrum of a packed FFT frame into dst,
// which must hold len(packed)/2+1 values: DC first, then the interior bins in
// ascending order, then Nyquist.
func Magnitude(dst, packed []float32) {
	n := len(packed)
	dst[0] = packed[0]
	for k := 1; k < n/2; k++ {
		re, im := float64(packed[2*k]), float64(packed[2*k+1])
		dst[k] = float32(math.Sqrt(re*re + im*im))
	}
	dst[n/2] = packed[1]
}

// Analyze windows samples, transforms them and writes the magnitude spectrum
// into dst.
func (a *SpectrumAnalyzer) Analyze(dst, samples []float32) {
	Magnitude(dst, a.Transform(samples))
}
