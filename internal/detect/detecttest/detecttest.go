// Package detecttest provides small detector configurations and matching
// mock models for tests.
package detecttest

import (
	"github.com/MrWong99/wakeline/internal/detect"
	"github.com/MrWong99/wakeline/pkg/provider/inference/mock"
)

// Paths used by Config and registered by Loader.
const (
	FilterPath = "filter.onnx"
	EncodePath = "encode.onnx"
	DetectPath = "detect.onnx"
)

// Config returns a tiny valid configuration at 1 kHz: an 8 sample window,
// 2 sample hop, 2 mel frames of width 3 and 3 encoder frames of width 2.
func Config() detect.Config {
	return detect.Config{
		SampleRate:     1000,
		FFTWindowSize:  8,
		FFTWindowType:  "hann",
		FFTHopLength:   2,
		MelFrameLength: 4,
		MelFrameWidth:  3,
		EncodeLength:   6,
		EncodeWidth:    2,
		Threshold:      0.5,
		FilterPath:     FilterPath,
		EncodePath:     EncodePath,
		DetectPath:     DetectPath,
	}
}

// Models are mock models sized for one configuration.
type Models struct {
	Filter *mock.Model
	Encode *mock.Model
	Detect *mock.Model
}

// NewModels returns mock models matching s. The detect model produces
// outputs posteriors.
func NewModels(s detect.Sizes, outputs int) Models {
	return Models{
		Filter: mock.NewModel([]int{s.Bins}, []int{s.MelWidth}, -1),
		Encode: mock.NewModel([]int{s.MelWindow(), s.StateWidth}, []int{s.EncodeWidth, s.StateWidth}, detect.EncodeStateIndex),
		Detect: mock.NewModel([]int{s.EncodeWindow()}, []int{outputs}, -1),
	}
}

// Detector returns the models as a detect.Models value.
func (m Models) Detector() detect.Models {
	return detect.Models{Filter: m.Filter, Encode: m.Encode, Detect: m.Detect}
}

// Calls returns the run counts of the filter, encode and detect models.
func (m Models) Calls() (filter, encode, det int) {
	return m.Filter.Calls(), m.Encode.Calls(), m.Detect.Calls()
}

// Loader returns a mock loader serving models sized for c.
func Loader(c detect.Config, outputs int) (*mock.Loader, Models) {
	s, err := c.Sizes()
	if err != nil {
		panic(err)
	}
	m := NewModels(s, outputs)
	return &mock.Loader{Models: map[string]*mock.Model{
		c.FilterPath: m.Filter,
		c.EncodePath: m.Encode,
		c.DetectPath: m.Detect,
	}}, m
}

// Frame returns n samples of constant value v.
func Frame(n int, v int16) []int16 {
	f := make([]int16, n)
	for i := range f {
		f[i] = v
	}
	return f
}
