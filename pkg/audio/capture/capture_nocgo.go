//go:build !cgo

// Package capture records PCM16 from the default audio input device through
// miniaudio. Without cgo, Open always fails.
package capture

import (
	"errors"

	"github.com/MrWong99/wakeline/pkg/audio"
)

// ErrUnsupported is returned by Open in builds without cgo.
var ErrUnsupported = errors.New("capture: audio capture requires cgo")

// Config selects the capture format.
type Config struct {
	SampleRate int
	Channels   int
	Queue      int
}

// Device is unavailable without cgo.
type Device struct{}

// Open returns ErrUnsupported.
func Open(Config) (*Device, error) { return nil, ErrUnsupported }

// Frames returns nil.
func (d *Device) Frames() <-chan audio.AudioFrame { return nil }

// Format returns the zero format.
func (d *Device) Format() audio.Format { return audio.Format{} }

// Dropped returns 0.
func (d *Device) Dropped() int64 { return 0 }

// Start returns ErrUnsupported.
func (d *Device) Start() error { return ErrUnsupported }

// Close does nothing.
func (d *Device) Close() error { return nil }
