package dsp

import "math"

// ConditionerConfig configures a Conditioner.
type ConditionerConfig struct {
	// RMSTarget is the signal energy that speech frames are normalised to.
	RMSTarget float32

	// RMSAlpha is the EWMA rate of the running RMS estimate. Zero disables
	// normalisation.
	RMSAlpha float32

	// PreEmphasis is the pre-emphasis filter coefficient. Zero disables the
	// filter.
	PreEmphasis float32
}

// Conditioner converts PCM samples to floats and applies RMS normalisation
// and pre-emphasis. It carries the running RMS estimate and the previous
// unfiltered sample across frames.
type Conditioner struct {
	cfg      ConditionerConfig
	rmsValue float32
	prev     float32
}

// NewConditioner returns a Conditioner in its initial state.
func NewConditioner(cfg ConditionerConfig) *Conditioner {
	c := &Conditioner{cfg: cfg}
	c.Reset()
	return c
}

// Reset restores the initial RMS estimate and clears the filter history.
func (c *Conditioner) Reset() {
	c.rmsValue = c.cfg.RMSTarget
	c.prev = 0
}

// RMS returns the current running RMS estimate.
func (c *Conditioner) RMS() float32 { return c.rmsValue }

// Observe updates the running RMS estimate from a frame. Only speech frames
// contribute; call it once per frame before converting its samples.
func (c *Conditioner) Observe(frame []int16, speech bool) {
	if !speech || c.cfg.RMSAlpha <= 0 {
		return
	}
	a := c.cfg.RMSAlpha
	c.rmsValue = a*RMS(frame) + (1-a)*c.rmsValue
}

// Next conditions a single sample.
func (c *Conditioner) Next(s int16) float32 {
	x := clip(float32(s) / math.MaxInt16)
	if c.cfg.RMSAlpha > 0 && c.rmsValue > 0 {
		x = clip(x * c.cfg.RMSTarget / c.rmsValue)
	}
	if c.cfg.PreEmphasis == 0 {
		return x
	}
	y := x - c.cfg.PreEmphasis*c.prev
	c.prev = x
	return y
}

// RMS returns the root mean square of a PCM frame scaled to [-1, 1].
func RMS(frame []int16) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

func clip(x float32) float32 {
	return max(-1, min(x, 1))
}
