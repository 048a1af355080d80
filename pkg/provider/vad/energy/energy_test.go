package energy

import (
	"errors"
	"testing"

	"github.com/MrWong99/wakeline/pkg/provider/vad"
)

func newSession(t *testing.T) vad.Session {
	t.Helper()
	sess, err := New().NewSession(vad.Config{
		SampleRate:       1000,
		FrameSizeMs:      10,
		SpeechThreshold:  0.1,
		SilenceThreshold: 0.05,
		SpeechFrames:     2,
		SilenceFrames:    3,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func frame(v int16) []int16 {
	f := make([]int16, 10)
	for i := range f {
		f[i] = v
	}
	return f
}

func TestSession_Hysteresis(t *testing.T) {
	sess := newSession(t)
	loud, mid, quiet := frame(10000), frame(2500), frame(0)

	steps := []struct {
		in   []int16
		want vad.EventType
	}{
		{loud, vad.Silence},
		{quiet, vad.Silence}, // run broken
		{loud, vad.Silence},
		{loud, vad.SpeechStart},
		{mid, vad.Speech},
		{quiet, vad.Speech},
		{mid, vad.Speech}, // run broken
		{quiet, vad.Speech},
		{quiet, vad.Speech},
		{quiet, vad.SpeechEnd},
		{quiet, vad.Silence},
	}
	for i, st := range steps {
		ev, err := sess.ProcessFrame(st.in)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if ev.Type != st.want {
			t.Errorf("step %d: type = %v, want %v", i, ev.Type, st.want)
		}
	}
}

func TestSession_Reset(t *testing.T) {
	sess := newSession(t)
	loud := frame(10000)
	for range 2 {
		_, _ = sess.ProcessFrame(loud)
	}
	sess.Reset()
	ev, _ := sess.ProcessFrame(loud)
	if ev.Type != vad.Silence {
		t.Errorf("first frame after Reset = %v, want silence", ev.Type)
	}
}

func TestSession_Errors(t *testing.T) {
	sess := newSession(t)
	if _, err := sess.ProcessFrame(make([]int16, 3)); !errors.Is(err, errFrameSize) {
		t.Errorf("short frame err = %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ProcessFrame(frame(0)); !errors.Is(err, errClosed) {
		t.Errorf("after Close err = %v", err)
	}
}

func TestNewSession_Invalid(t *testing.T) {
	tests := map[string]vad.Config{
		"inverted thresholds": {SampleRate: 16000, FrameSizeMs: 20, SpeechThreshold: 0.01, SilenceThreshold: 0.02},
		"empty frame":         {SampleRate: 16000, SpeechThreshold: 0.02},
	}
	for name, cfg := range tests {
		if _, err := New().NewSession(cfg); err == nil {
			t.Errorf("%s: NewSession succeeded", name)
		}
	}
}
