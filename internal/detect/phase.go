package detect

// Phase is the detector state derived from the context flags at the start of
// a frame.
type Phase int

const (
	// PhaseIdle: not active, no speech. Samples are windowed but not
	// analysed.
	PhaseIdle Phase = iota

	// PhaseAnalyzing: not active, speech present.
	PhaseAnalyzing

	// PhaseActive: the pipeline is activated.
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// Edges are the flag transitions between two consecutive frames.
type Edges struct {
	SpeechRise bool
	SpeechFall bool
	Activate   bool
	Deactivate bool
}

// Tracker records the previous frame's flags and derives edges and the
// current Phase.
type Tracker struct {
	speech bool
	active bool
}

// Observe compares the flags of the current frame with the previous one and
// stores them for the next call.
func (t *Tracker) Observe(speech, active bool) Edges {
	e := Edges{
		SpeechRise: !t.speech && speech,
		SpeechFall: t.speech && !speech,
		Activate:   !t.active && active,
		Deactivate: t.active && !active,
	}
	t.speech, t.active = speech, active
	return e
}

// Phase returns the phase of the last observed frame.
func (t *Tracker) Phase() Phase {
	switch {
	case t.active:
		return PhaseActive
	case t.speech:
		return PhaseAnalyzing
	default:
		return PhaseIdle
	}
}

// Reset forgets the previous flags.
func (t *Tracker) Reset() {
	*t = Tracker{}
}
