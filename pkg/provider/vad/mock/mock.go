// Package mock holds scripted vad doubles for stage tests.
package mock

import (
	"slices"
	"sync"

	"github.com/MrWong99/wakeline/pkg/provider/vad"
)

// Engine hands out Session, or a fresh silent session when Session is nil.
type Engine struct {
	Session vad.Session
	Err     error

	mu      sync.Mutex
	configs []vad.Config
}

func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	switch {
	case e.Err != nil:
		return nil, e.Err
	case e.Session != nil:
		return e.Session, nil
	}
	return &Session{}, nil
}

// Configs returns the config of every NewSession call so far.
func (e *Engine) Configs() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.configs)
}

// Session answers ProcessFrame from Script, repeating its last entry once it
// runs out. With no Script every frame gets Event.
type Session struct {
	Event    vad.Event
	Script   []vad.Event
	Err      error
	CloseErr error

	mu     sync.Mutex
	frames [][]int16
	resets int
	closes int
}

func (s *Session) ProcessFrame(frame []int16) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, slices.Clone(frame))
	if s.Err != nil {
		return vad.Event{}, s.Err
	}
	if n := len(s.Script); n > 0 {
		return s.Script[min(len(s.frames), n)-1], nil
	}
	return s.Event, nil
}

func (s *Session) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return s.CloseErr
}

// Frames returns copies of the frames processed so far.
func (s *Session) Frames() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.frames)
}

// Resets and Closes count the calls to Reset and Close.
func (s *Session) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var (
	_ vad.Engine  = (*Engine)(nil)
	_ vad.Session = (*Session)(nil)
)
