package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/wakeline/internal/config"
	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/internal/pipeline"
	"github.com/MrWong99/wakeline/pkg/audio"
	"github.com/MrWong99/wakeline/pkg/audio/capture"
)

// source yields audio frames until io.EOF.
type source interface {
	ReadFrame() (audio.AudioFrame, error)
}

// runInput analyses a single input and logs every pipeline event.
func runInput(ctx context.Context, cfg *config.Config, reg *config.Registry, env config.StageEnv, m *observe.Metrics, input string) int {
	events := &eventLogger{frameMs: cfg.Audio.FrameWidth}
	p, err := pipeline.Build(cfg, reg, env,
		pipeline.WithMetrics(m),
		pipeline.WithListener(events.listen),
	)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("pipeline close", "err", err)
		}
	}()

	src, closeSrc, err := openInput(ctx, input, cfg.Audio)
	if err != nil {
		slog.Error("failed to open input", "input", input, "err", err)
		return 1
	}
	defer closeSrc()

	start := time.Now()
	err = detect(ctx, p, src, cfg.Audio.SampleRate, events)
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("interrupted", "frames", events.frames)
	case err != nil:
		slog.Error("detection failed", "err", err)
		return 1
	default:
		slog.Info("input finished", "frames", events.frames, "elapsed", time.Since(start))
	}
	return 0
}

// detect feeds src through p until the source is exhausted. Frames are
// converted to mono at sampleRate and cut to the pipeline frame size; the last
// partial frame is zero padded.
func detect(ctx context.Context, p *pipeline.Pipeline, src source, sampleRate int, events *eventLogger) error {
	conv := &audio.Converter{SampleRate: sampleRate}
	framer := audio.NewFramer(p.FrameSamples())
	emit := func(frame []int16) error {
		err := p.Process(ctx, frame)
		events.frames++
		return err
	}

	for {
		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		out := conv.Convert(frame)
		if len(out.Data) == 0 {
			continue
		}
		if err := framer.Write(audio.Samples(out.Data), emit); err != nil {
			return err
		}
	}
	return framer.Flush(emit)
}

// openInput resolves the -input flag. "mic" opens the default capture
// device, "-" reads stdin, anything else is a file path. Streams starting
// with a RIFF header are parsed as WAV; everything else is raw mono PCM16 at
// the configured sample rate.
func openInput(ctx context.Context, input string, a config.AudioConfig) (source, func(), error) {
	chunk := time.Duration(a.FrameWidth) * time.Millisecond
	switch input {
	case "mic":
		return openMic(ctx, a.SampleRate)
	case "-":
		src, err := newReader(os.Stdin, a.SampleRate, chunk)
		return src, func() {}, err
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, nil, err
	}
	src, err := newReader(f, a.SampleRate, chunk)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return src, func() { f.Close() }, nil
}

// newReader sniffs r for a RIFF header and returns a WAV or raw PCM reader.
func newReader(r io.Reader, sampleRate int, chunk time.Duration) (*audio.PCMReader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(head) == "RIFF" {
		return audio.NewWAVReader(br, chunk)
	}
	return audio.NewPCMReader(br, audio.Format{SampleRate: sampleRate, Channels: 1}, chunk)
}

// micSource reads converted capture frames. It reports io.EOF once ctx is
// cancelled or the device stops.
type micSource struct {
	ctx    context.Context
	frames <-chan audio.AudioFrame
}

func (m micSource) ReadFrame() (audio.AudioFrame, error) {
	select {
	case <-m.ctx.Done():
		return audio.AudioFrame{}, io.EOF
	case frame, ok := <-m.frames:
		if !ok {
			return audio.AudioFrame{}, io.EOF
		}
		return frame, nil
	}
}

func openMic(ctx context.Context, sampleRate int) (source, func(), error) {
	dev, err := capture.Open(capture.Config{SampleRate: sampleRate, Channels: 1})
	if err != nil {
		return nil, nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, nil, err
	}
	slog.Info("listening on default capture device", "format", audio.Format{SampleRate: sampleRate, Channels: 1})
	frames := audio.ConvertStream(dev.Frames(), sampleRate)
	stop := func() {
		go audio.Drain(frames)
		if err := dev.Close(); err != nil {
			slog.Warn("capture close", "err", err)
		}
		if n := dev.Dropped(); n > 0 {
			slog.Warn("capture buffers dropped", "count", n)
		}
	}
	return micSource{ctx: ctx, frames: frames}, stop, nil
}
