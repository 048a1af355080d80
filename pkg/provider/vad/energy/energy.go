// Package energy is a vad.Engine scoring frames by their RMS level.
//
// A segment opens after SpeechFrames consecutive frames at or above
// SpeechThreshold and closes after SilenceFrames consecutive frames below
// SilenceThreshold. A level between the two thresholds breaks whichever run is
// in progress without changing state.
package energy

import (
	"errors"

	"github.com/MrWong99/wakeline/internal/dsp"
	"github.com/MrWong99/wakeline/pkg/provider/vad"
)

// Defaults for 16 kHz speech in 20 ms frames.
const (
	DefaultSpeechThreshold  = 0.015
	DefaultSilenceThreshold = 0.008
	DefaultSpeechFrames     = 3
	DefaultSilenceFrames    = 30
)

var (
	errClosed    = errors.New("energy vad: session closed")
	errFrameSize = errors.New("energy vad: wrong frame size")
)

// Engine has no state; the zero value works.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

// NewSession validates cfg and returns a detector for one stream. The score
// of each frame is its RMS level on a 0..1 scale.
func (*Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		size: cfg.FrameSamples(),
		open: gate{level: cfg.SpeechThreshold, need: max(cfg.SpeechFrames, 1)},
		shut: gate{level: cfg.SilenceThreshold, need: max(cfg.SilenceFrames, 1)},
	}, nil
}

// gate counts consecutive frames on one side of a level.
type gate struct {
	level float64
	need  int
	run   int
}

// step advances the run when hit and reports whether it reached need.
func (g *gate) step(hit bool) bool {
	if !hit {
		g.run = 0
		return false
	}
	g.run++
	if g.run < g.need {
		return false
	}
	g.run = 0
	return true
}

// Session tracks one stream.
type Session struct {
	size     int
	open     gate
	shut     gate
	speaking bool
	closed   bool
}

// ProcessFrame scores frame and advances the hysteresis. It fails for a
// frame of the wrong length or after Close.
func (s *Session) ProcessFrame(frame []int16) (vad.Event, error) {
	switch {
	case s.closed:
		return vad.Event{}, errClosed
	case len(frame) != s.size:
		return vad.Event{}, errFrameSize
	}

	ev := vad.Event{Score: float64(dsp.RMS(frame))}
	if s.speaking {
		ev.Type = vad.Speech
		if s.shut.step(ev.Score < s.shut.level) {
			s.speaking = false
			ev.Type = vad.SpeechEnd
		}
		return ev, nil
	}
	ev.Type = vad.Silence
	if s.open.step(ev.Score >= s.open.level) {
		s.speaking = true
		ev.Type = vad.SpeechStart
	}
	return ev, nil
}

// Reset returns the session to silence and clears both runs.
func (s *Session) Reset() {
	s.speaking = false
	s.open.run, s.shut.run = 0, 0
}

// Close makes further ProcessFrame calls fail. It never returns an error.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

var (
	_ vad.Engine  = (*Engine)(nil)
	_ vad.Session = (*Session)(nil)
)
