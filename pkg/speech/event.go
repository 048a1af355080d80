package speech

// Event identifies a state change dispatched by a [Context] to its listeners.
type Event int

const (
	// EventActivate is dispatched when the context transitions to active.
	EventActivate Event = iota

	// EventDeactivate is dispatched when the context transitions to inactive.
	EventDeactivate

	// EventRecognize is dispatched when a recognizer produced a transcript.
	// The transcript and confidence are available on the context.
	EventRecognize

	// EventTimeout is dispatched when an activation ended without a
	// recognition result above threshold.
	EventTimeout

	// EventError is dispatched when a stage failed. The error is available via
	// [Context.Err].
	EventError

	// EventTrace is dispatched for diagnostic messages. The message is
	// available via [Context.Message].
	EventTrace
)

// String returns the lower-case event name used on the wire and in logs.
func (e Event) String() string {
	switch e {
	case EventActivate:
		return "activate"
	case EventDeactivate:
		return "deactivate"
	case EventRecognize:
		return "recognize"
	case EventTimeout:
		return "timeout"
	case EventError:
		return "error"
	case EventTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// TraceLevel gates diagnostic messages. A message is emitted when its level is
// greater than or equal to the level configured on the context.
type TraceLevel int

const (
	TraceDebug TraceLevel = 10
	TracePerf  TraceLevel = 20
	TraceInfo  TraceLevel = 30
	TraceWarn  TraceLevel = 50
	TraceError TraceLevel = 80
	TraceNone  TraceLevel = 100
)

// ParseTraceLevel converts a level name (debug, perf, info, warn, error, none)
// to a TraceLevel. The second return value is false for unknown names.
func ParseTraceLevel(name string) (TraceLevel, bool) {
	switch name {
	case "debug":
		return TraceDebug, true
	case "perf":
		return TracePerf, true
	case "info":
		return TraceInfo, true
	case "warn":
		return TraceWarn, true
	case "error":
		return TraceError, true
	case "none", "":
		return TraceNone, true
	default:
		return 0, false
	}
}

// String returns the level name accepted by [ParseTraceLevel].
func (l TraceLevel) String() string {
	switch l {
	case TraceDebug:
		return "debug"
	case TracePerf:
		return "perf"
	case TraceInfo:
		return "info"
	case TraceWarn:
		return "warn"
	case TraceError:
		return "error"
	case TraceNone:
		return "none"
	default:
		return "custom"
	}
}
