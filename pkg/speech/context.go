// Package speech defines the session state shared by the stages of a speech
// pipeline and the interface those stages implement.
//
// A [Context] carries the speech and active flags, the latest recognition
// result, and a synchronous listener dispatch mechanism. Stages mutate the
// context while processing a frame; listeners observe the resulting events.
//
// A Context is owned by exactly one pipeline and is not safe for concurrent
// use. Listeners run on the goroutine that processes audio and must not block.
package speech

import (
	"fmt"
)

// Listener receives events dispatched by a [Context].
type Listener func(ev Event, sc *Context)

// Context is the mutable state of a single speech session.
type Context struct {
	speech     bool
	active     bool
	transcript string
	confidence float64
	err        error
	message    string

	traceLevel TraceLevel
	listeners  []Listener
}

// Option configures a [Context] at construction.
type Option func(*Context)

// WithTraceLevel sets the minimum level of trace messages that are
// dispatched. The default is [TraceNone].
func WithTraceLevel(level TraceLevel) Option {
	return func(sc *Context) { sc.traceLevel = level }
}

// WithListener registers l before any event can be dispatched.
func WithListener(l Listener) Option {
	return func(sc *Context) { sc.listeners = append(sc.listeners, l) }
}

// NewContext returns an inactive, non-speech Context.
func NewContext(opts ...Option) *Context {
	sc := &Context{traceLevel: TraceNone}
	for _, o := range opts {
		o(sc)
	}
	return sc
}

// AddListener appends l to the listener list. Listeners are called in
// registration order.
func (sc *Context) AddListener(l Listener) {
	sc.listeners = append(sc.listeners, l)
}

// IsSpeech reports whether the current frame was classified as speech.
func (sc *Context) IsSpeech() bool { return sc.speech }

// SetSpeech sets the speech flag. No event is dispatched.
func (sc *Context) SetSpeech(v bool) { sc.speech = v }

// IsActive reports whether the pipeline is currently activated.
func (sc *Context) IsActive() bool { return sc.active }

// SetActive sets the active flag. On a false to true transition
// [EventActivate] is dispatched, on a true to false transition
// [EventDeactivate]. Setting the current value again dispatches nothing.
func (sc *Context) SetActive(v bool) {
	if sc.active == v {
		return
	}
	sc.active = v
	if v {
		sc.Dispatch(EventActivate)
	} else {
		sc.Dispatch(EventDeactivate)
	}
}

// Transcript returns the most recent recognition result.
func (sc *Context) Transcript() string { return sc.transcript }

// SetTranscript stores a recognition result.
func (sc *Context) SetTranscript(s string) { sc.transcript = s }

// Confidence returns the confidence of the most recent recognition result.
func (sc *Context) Confidence() float64 { return sc.confidence }

// SetConfidence stores the confidence of a recognition result.
func (sc *Context) SetConfidence(c float64) { sc.confidence = c }

// Err returns the last error recorded by a stage.
func (sc *Context) Err() error { return sc.err }

// SetErr records a stage error. Use [Context.Fail] to also dispatch it.
func (sc *Context) SetErr(err error) { sc.err = err }

// Fail records err and dispatches [EventError].
func (sc *Context) Fail(err error) {
	sc.err = err
	sc.Dispatch(EventError)
}

// Message returns the last trace message.
func (sc *Context) Message() string { return sc.message }

// TraceLevel returns the configured trace level.
func (sc *Context) TraceLevel() TraceLevel { return sc.traceLevel }

// SetTraceLevel changes the trace level for subsequent messages.
func (sc *Context) SetTraceLevel(level TraceLevel) { sc.traceLevel = level }

// CanTrace reports whether a message at level would be dispatched.
func (sc *Context) CanTrace(level TraceLevel) bool {
	return level >= sc.traceLevel
}

// Trace formats a message and dispatches [EventTrace] if level passes the
// configured trace level.
func (sc *Context) Trace(level TraceLevel, format string, args ...any) {
	if !sc.CanTrace(level) {
		return
	}
	sc.message = fmt.Sprintf(format, args...)
	sc.Dispatch(EventTrace)
}

// TraceDebug is shorthand for Trace(TraceDebug, ...).
func (sc *Context) TraceDebug(format string, args ...any) {
	sc.Trace(TraceDebug, format, args...)
}

// TracePerf is shorthand for Trace(TracePerf, ...).
func (sc *Context) TracePerf(format string, args ...any) {
	sc.Trace(TracePerf, format, args...)
}

// TraceInfo is shorthand for Trace(TraceInfo, ...).
func (sc *Context) TraceInfo(format string, args ...any) {
	sc.Trace(TraceInfo, format, args...)
}

// Dispatch calls every listener with ev. A panicking listener does not stop
// the remaining listeners; the panic is reported as an info trace unless ev
// itself is a trace event.
func (sc *Context) Dispatch(ev Event) {
	for _, l := range sc.listeners {
		sc.call(l, ev)
	}
}

func (sc *Context) call(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil && ev != EventTrace {
			sc.TraceInfo("dispatch-failed: %v", r)
		}
	}()
	l(ev, sc)
}

// Reset clears all session state. If the context was active,
// [EventDeactivate] is dispatched. The trace level and listeners are kept.
func (sc *Context) Reset() {
	sc.speech = false
	sc.SetActive(false)
	sc.transcript = ""
	sc.confidence = 0
	sc.err = nil
	sc.message = ""
}
