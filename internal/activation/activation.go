// Package activation contains the pipeline stages that decide when the
// speech flag is set and when an activation ends: voice activity detection,
// an activation timeout, and a passthrough recognizer that hands control back
// to the wakeword trigger.
package activation

import (
	"fmt"

	"github.com/MrWong99/wakeline/pkg/provider/vad"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// Default activation bounds in milliseconds.
const (
	DefaultMinActiveMs = 500
	DefaultMaxActiveMs = 5000
)

// Timeout deactivates the pipeline once an activation has lasted long enough.
// After MinMs it ends the activation on a speech-falling edge; after MaxMs it
// ends it unconditionally.
type Timeout struct {
	minFrames    int
	maxFrames    int
	activeLength int
	speech       bool
}

// NewTimeout returns a Timeout for frames of frameWidthMs.
func NewTimeout(minMs, maxMs, frameWidthMs int) (*Timeout, error) {
	if frameWidthMs <= 0 {
		return nil, fmt.Errorf("activation: frame width %dms must be positive", frameWidthMs)
	}
	if minMs < 0 || maxMs < minMs {
		return nil, fmt.Errorf("activation: invalid bounds min %dms max %dms", minMs, maxMs)
	}
	return &Timeout{minFrames: minMs / frameWidthMs, maxFrames: maxMs / frameWidthMs}, nil
}

// Process implements speech.Processor.
func (t *Timeout) Process(sc *speech.Context, _ []int16) error {
	vadFall := t.speech && !sc.IsSpeech()
	t.speech = sc.IsSpeech()
	if !sc.IsActive() {
		t.activeLength = 0
		return nil
	}
	t.activeLength++
	if t.activeLength > t.minFrames && (vadFall || t.activeLength > t.maxFrames) {
		t.activeLength = 0
		sc.SetActive(false)
	}
	return nil
}

// Reset implements speech.Processor.
func (t *Timeout) Reset() error {
	t.activeLength = 0
	t.speech = false
	return nil
}

// Close implements speech.Processor.
func (t *Timeout) Close() error { return nil }

// Passthrough stands in for a recognizer when only the wakeword matters. It
// leaves the context active for exactly one frame and deactivates it on the
// next, which gives a preceding wakeword trigger a frame to observe the
// activation before it sees the deactivation edge and resets.
type Passthrough struct {
	active bool
}

// Process implements speech.Processor.
func (p *Passthrough) Process(sc *speech.Context, _ []int16) error {
	if p.active {
		sc.SetActive(false)
	}
	p.active = sc.IsActive()
	return nil
}

// Reset implements speech.Processor.
func (p *Passthrough) Reset() error {
	p.active = false
	return nil
}

// Close implements speech.Processor.
func (p *Passthrough) Close() error { return nil }

// VoiceActivity sets the speech flag from a VAD session.
type VoiceActivity struct {
	session vad.Session
}

// NewVoiceActivity creates a session on engine and wraps it as a stage.
func NewVoiceActivity(engine vad.Engine, cfg vad.Config) (*VoiceActivity, error) {
	sess, err := engine.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("activation: vad session: %w", err)
	}
	return &VoiceActivity{session: sess}, nil
}

// Process implements speech.Processor.
func (v *VoiceActivity) Process(sc *speech.Context, frame []int16) error {
	ev, err := v.session.ProcessFrame(frame)
	if err != nil {
		return fmt.Errorf("activation: vad: %w", err)
	}
	sc.SetSpeech(ev.IsSpeech())
	return nil
}

// Reset implements speech.Processor.
func (v *VoiceActivity) Reset() error {
	v.session.Reset()
	return nil
}

// Close implements speech.Processor.
func (v *VoiceActivity) Close() error { return v.session.Close() }

// Ensure the stages implement speech.Processor at compile time.
var (
	_ speech.Processor = (*Timeout)(nil)
	_ speech.Processor = (*Passthrough)(nil)
	_ speech.Processor = (*VoiceActivity)(nil)
)
