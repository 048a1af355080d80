// Package vad is the boundary between the pipeline's vad stage and voice
// activity detectors.
//
// An [Engine] hands out one [Session] per audio stream. Sessions keep their
// own hysteresis state, are synchronous and never block, and must not be
// shared between goroutines. Engines must allow concurrent NewSession calls.
package vad

import (
	"errors"
	"fmt"
)

// Config parameterises a session. Thresholds are on the engine's own speech
// score scale.
type Config struct {
	// SampleRate and FrameSizeMs fix the length of every frame passed to
	// ProcessFrame.
	SampleRate  int
	FrameSizeMs int

	// A frame scoring at or above SpeechThreshold counts towards speech, one
	// scoring below SilenceThreshold towards silence. Scores in between keep
	// the current state.
	SpeechThreshold  float64
	SilenceThreshold float64

	// SpeechFrames and SilenceFrames are the consecutive frames needed to
	// enter and leave speech. Values below 1 mean 1.
	SpeechFrames  int
	SilenceFrames int
}

// FrameSamples is the number of samples per frame.
func (c Config) FrameSamples() int {
	return c.SampleRate * c.FrameSizeMs / 1000
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.FrameSamples() <= 0 {
		errs = append(errs, fmt.Errorf("vad: %d ms at %d Hz holds no samples", c.FrameSizeMs, c.SampleRate))
	}
	if c.SilenceThreshold > c.SpeechThreshold {
		errs = append(errs, fmt.Errorf("vad: silence threshold %v above speech threshold %v",
			c.SilenceThreshold, c.SpeechThreshold))
	}
	return errors.Join(errs...)
}

// EventType is the state of the stream after a frame.
type EventType int

const (
	Silence EventType = iota
	SpeechStart
	Speech
	SpeechEnd
)

func (t EventType) String() string {
	switch t {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech_start"
	case Speech:
		return "speech"
	case SpeechEnd:
		return "speech_end"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is the result for one frame.
type Event struct {
	Type EventType

	// Score is the engine's raw speech score for the frame.
	Score float64
}

// IsSpeech reports whether the frame belongs to a speech segment. The frame
// that ends a segment does not.
func (e Event) IsSpeech() bool {
	return e.Type == SpeechStart || e.Type == Speech
}

// Session detects speech in one stream.
type Session interface {
	// ProcessFrame classifies one mono PCM16 frame of exactly
	// Config.FrameSamples samples.
	ProcessFrame(frame []int16) (Event, error)

	// Reset forgets all hysteresis state.
	Reset()

	// Close releases the session. Further calls fail. Closing twice is safe.
	Close() error
}

// Engine creates sessions.
type Engine interface {
	NewSession(cfg Config) (Session, error)
}
