//go:build cgo

// Package capture records PCM16 from the default audio input device through
// miniaudio.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/wakeline/pkg/audio"
)

// defaultQueue is the number of device callbacks buffered before frames are
// dropped.
const defaultQueue = 64

// Config selects the capture format.
type Config struct {
	SampleRate int
	Channels   int

	// Queue is the frame channel capacity. Zero uses a default.
	Queue int
}

// Device is an open capture device. Frames arrive on [Device.Frames] once
// [Device.Start] has been called.
type Device struct {
	cfg    Config
	mctx   *malgo.AllocatedContext
	dev    *malgo.Device
	frames chan audio.AudioFrame
	drops  atomic.Int64

	mu      sync.Mutex
	samples int64
	closed  bool
}

// Open initialises the default capture device.
func Open(cfg Config) (*Device, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("capture: invalid format %dHz %dch", cfg.SampleRate, cfg.Channels)
	}
	if cfg.Queue <= 0 {
		cfg.Queue = defaultQueue
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("capture: miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}

	d := &Device{
		cfg:    cfg,
		mctx:   mctx,
		frames: make(chan audio.AudioFrame, cfg.Queue),
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = uint32(cfg.SampleRate)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(cfg.Channels)
	devCfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{Data: d.onData})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("capture: init device: %w", err)
	}
	d.dev = dev
	return d, nil
}

// onData runs on the miniaudio thread and must not block.
func (d *Device) onData(_, input []byte, frameCount uint32) {
	if frameCount == 0 || len(input) == 0 {
		return
	}
	data := make([]byte, len(input))
	copy(data, input)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	frame := audio.AudioFrame{
		Data:       data,
		SampleRate: d.cfg.SampleRate,
		Channels:   d.cfg.Channels,
		Timestamp:  time.Duration(d.samples * int64(time.Second) / int64(d.cfg.SampleRate)),
	}
	d.samples += int64(frameCount)
	select {
	case d.frames <- frame:
	default:
		d.drops.Add(1)
	}
}

// Frames returns the channel captured audio is delivered on. It is closed by
// [Device.Close].
func (d *Device) Frames() <-chan audio.AudioFrame { return d.frames }

// Format returns the capture format.
func (d *Device) Format() audio.Format {
	return audio.Format{SampleRate: d.cfg.SampleRate, Channels: d.cfg.Channels}
}

// Dropped returns how many device buffers were dropped because the consumer
// fell behind.
func (d *Device) Dropped() int64 { return d.drops.Load() }

// Start begins capturing.
func (d *Device) Start() error {
	if err := d.dev.Start(); err != nil {
		return fmt.Errorf("capture: start device: %w", err)
	}
	return nil
}

// Close stops the device, releases miniaudio and closes the frame channel.
// It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error
	if err := d.dev.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("capture: stop device: %w", err))
	}
	d.dev.Uninit()
	if err := d.mctx.Uninit(); err != nil {
		errs = append(errs, fmt.Errorf("capture: uninit context: %w", err))
	}
	d.mctx.Free()
	close(d.frames)
	return errors.Join(errs...)
}
