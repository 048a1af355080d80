package speech

import (
	"errors"
	"testing"
)

type recorder struct {
	events   []Event
	messages []string
}

func (r *recorder) listen(ev Event, sc *Context) {
	r.events = append(r.events, ev)
	if ev == EventTrace {
		r.messages = append(r.messages, sc.Message())
	}
}

func TestSetActive_DispatchesOnEdgesOnly(t *testing.T) {
	var rec recorder
	sc := NewContext(WithListener(rec.listen))

	sc.SetActive(false)
	sc.SetActive(true)
	sc.SetActive(true)
	sc.SetActive(false)

	want := []Event{EventActivate, EventDeactivate}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, rec.events[i], want[i])
		}
	}
}

func TestTrace_GatedByLevel(t *testing.T) {
	tests := []struct {
		name  string
		level TraceLevel
		emit  TraceLevel
		want  bool
	}{
		{name: "below", level: TraceInfo, emit: TraceDebug, want: false},
		{name: "equal", level: TraceInfo, emit: TraceInfo, want: true},
		{name: "above", level: TracePerf, emit: TraceInfo, want: true},
		{name: "none", level: TraceNone, emit: TraceError, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			sc := NewContext(WithTraceLevel(tt.level), WithListener(rec.listen))
			sc.Trace(tt.emit, "value %d", 7)
			if got := len(rec.messages) == 1; got != tt.want {
				t.Fatalf("emitted = %v, want %v", got, tt.want)
			}
			if tt.want && rec.messages[0] != "value 7" {
				t.Errorf("message = %q, want %q", rec.messages[0], "value 7")
			}
		})
	}
}

func TestDispatch_RecoversListenerPanic(t *testing.T) {
	var rec recorder
	sc := NewContext(WithTraceLevel(TraceInfo))
	sc.AddListener(func(ev Event, _ *Context) {
		if ev == EventActivate {
			panic("boom")
		}
	})
	sc.AddListener(rec.listen)

	sc.SetActive(true)

	if len(rec.events) != 2 {
		t.Fatalf("events = %v, want [trace activate]", rec.events)
	}
	if rec.events[0] != EventTrace || rec.messages[0] != "dispatch-failed: boom" {
		t.Errorf("first event = %v %q, want dispatch-failed trace", rec.events[0], rec.messages)
	}
	if rec.events[1] != EventActivate {
		t.Errorf("second event = %v, want activate", rec.events[1])
	}
}

func TestReset_ClearsState(t *testing.T) {
	var rec recorder
	sc := NewContext(WithListener(rec.listen))
	sc.SetSpeech(true)
	sc.SetActive(true)
	sc.SetTranscript("up")
	sc.SetConfidence(0.9)
	sc.Fail(errors.New("bad"))

	sc.Reset()

	if sc.IsSpeech() || sc.IsActive() {
		t.Errorf("flags = speech %v active %v, want both false", sc.IsSpeech(), sc.IsActive())
	}
	if sc.Transcript() != "" || sc.Confidence() != 0 || sc.Err() != nil {
		t.Errorf("result not cleared: %q %v %v", sc.Transcript(), sc.Confidence(), sc.Err())
	}
	last := rec.events[len(rec.events)-1]
	if last != EventDeactivate {
		t.Errorf("last event = %v, want deactivate", last)
	}
}

func TestParseTraceLevel(t *testing.T) {
	for _, name := range []string{"debug", "perf", "info", "warn", "error", "none"} {
		lvl, ok := ParseTraceLevel(name)
		if !ok {
			t.Fatalf("ParseTraceLevel(%q) not ok", name)
		}
		if lvl.String() != name {
			t.Errorf("round trip %q = %q", name, lvl.String())
		}
	}
	if _, ok := ParseTraceLevel("loud"); ok {
		t.Error("ParseTraceLevel(loud) ok, want false")
	}
}
