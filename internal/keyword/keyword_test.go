package keyword

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/wakeline/internal/detect"
	"github.com/MrWong99/wakeline/internal/detect/detecttest"
	"github.com/MrWong99/wakeline/pkg/provider/inference/mock"
	"github.com/MrWong99/wakeline/pkg/speech"
)

const frameLen = 10

func testConfig() Config {
	c := DefaultConfig()
	c.Config = detecttest.Config()
	c.PreEmphasis = 0.97
	c.Classes = ClassList{"up", "down", "stop"}
	return c
}

type recorder struct {
	events []speech.Event
}

func (r *recorder) listen(ev speech.Event, _ *speech.Context) {
	if ev != speech.EventTrace {
		r.events = append(r.events, ev)
	}
}

func newRecognizer(t *testing.T, posteriors ...float32) (*Recognizer, detecttest.Models) {
	t.Helper()
	cfg := testConfig()
	loader, m := detecttest.Loader(cfg.Config, len(cfg.Classes))
	m.Detect.RunFunc = func(mm *mock.Model) error {
		copy(mm.Output(0), posteriors)
		return nil
	}
	r, err := New(cfg, loader)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, m
}

func feed(t *testing.T, r *Recognizer, sc *speech.Context, frames int) {
	t.Helper()
	for range frames {
		if err := r.Process(sc, detecttest.Frame(frameLen, 500)); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
}

func TestRecognizer_InactiveRunsNothing(t *testing.T) {
	r, m := newRecognizer(t, 0.9, 0, 0)
	sc := speech.NewContext()
	sc.SetSpeech(true)

	feed(t, r, sc, 10)

	if f, e, d := m.Calls(); f+e+d != 0 {
		t.Errorf("model calls = %d/%d/%d, want none", f, e, d)
	}
}

func TestRecognizer_ClassifiesOnDeactivationFrame(t *testing.T) {
	tests := []struct {
		name           string
		posteriors     []float32
		wantEvent      speech.Event
		wantTranscript string
		wantConfidence float64
	}{
		{
			name:           "recognize",
			posteriors:     []float32{0.1, 0.8, 0.05},
			wantEvent:      speech.EventRecognize,
			wantTranscript: "down",
			wantConfidence: float64(float32(0.8)),
		},
		{
			name:       "timeout below threshold",
			posteriors: []float32{0.2, 0.3, 0.1},
			wantEvent:  speech.EventTimeout,
		},
		{
			name:       "threshold is exclusive",
			posteriors: []float32{0.5, 0.1, 0.1},
			wantEvent:  speech.EventTimeout,
		},
		{
			name:           "tie picks first class",
			posteriors:     []float32{0.1, 0.7, 0.7},
			wantEvent:      speech.EventRecognize,
			wantTranscript: "down",
			wantConfidence: float64(float32(0.7)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRecognizer(t, tt.posteriors...)
			var rec recorder
			sc := speech.NewContext(speech.WithListener(rec.listen))

			sc.SetActive(true)
			feed(t, r, sc, 3)
			f, e, d := m.Calls()
			if f == 0 || e == 0 {
				t.Fatalf("filter/encode calls = %d/%d while active, want > 0", f, e)
			}
			if d != 0 {
				t.Fatalf("detect calls while active = %d, want 0", d)
			}

			sc.SetActive(false)
			feed(t, r, sc, 1)
			if _, _, d := m.Calls(); d != 1 {
				t.Fatalf("detect calls after deactivation = %d, want 1", d)
			}

			last := rec.events[len(rec.events)-1]
			if last != tt.wantEvent {
				t.Errorf("last event = %v, want %v", last, tt.wantEvent)
			}
			if sc.Transcript() != tt.wantTranscript {
				t.Errorf("transcript = %q, want %q", sc.Transcript(), tt.wantTranscript)
			}
			if sc.Confidence() != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", sc.Confidence(), tt.wantConfidence)
			}

			feed(t, r, sc, 3)
			if _, _, d := m.Calls(); d != 1 {
				t.Errorf("detect calls after further inactive frames = %d, want 1", d)
			}
		})
	}
}

func TestRecognizer_ResetsAfterDetection(t *testing.T) {
	r, m := newRecognizer(t, 0.9, 0, 0)
	sc := speech.NewContext()

	sc.SetActive(true)
	feed(t, r, sc, 2)
	sc.SetActive(false)
	feed(t, r, sc, 1)

	if s := m.Encode.State(); !slices.Equal(s, make([]float32, len(s))) {
		t.Errorf("encoder state after detection = %v, want zeros", s)
	}
	// Next activation: the first classification sees -1 padding again.
	sc.SetActive(true)
	feed(t, r, sc, 1)
	sc.SetActive(false)
	feed(t, r, sc, 1)
	in := m.Detect.RunInputs[len(m.Detect.RunInputs)-1]
	if in[0] != -1 {
		t.Errorf("detect input[0] = %v, want -1 padding", in[0])
	}
}

func TestRecognizer_DetectErrorPropagates(t *testing.T) {
	r, m := newRecognizer(t, 0.9, 0, 0)
	boom := errors.New("boom")
	m.Detect.RunErr = boom
	sc := speech.NewContext()
	sc.SetActive(true)
	feed(t, r, sc, 1)
	sc.SetActive(false)

	if err := r.Process(sc, detecttest.Frame(frameLen, 0)); !errors.Is(err, boom) {
		t.Errorf("Process err = %v, want boom", err)
	}
}

func TestNew_RejectsBadClasses(t *testing.T) {
	tests := []struct {
		name    string
		classes ClassList
	}{
		{name: "empty", classes: nil},
		{name: "blank entry", classes: ClassList{"up", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Classes = tt.classes
			loader, _ := detecttest.Loader(cfg.Config, 2)
			_, err := New(cfg, loader)
			if !errors.Is(err, detect.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
			if len(loader.LoadCalls) != 0 {
				t.Errorf("models loaded despite invalid config")
			}
		})
	}
}

func TestNew_ClassCountMustMatchModel(t *testing.T) {
	cfg := testConfig()
	loader, _ := detecttest.Loader(cfg.Config, 2)
	if _, err := New(cfg, loader); err == nil {
		t.Error("3 classes accepted for a 2 output model")
	}
}

func TestParseClasses(t *testing.T) {
	got, err := ParseClasses(" up,down , stop")
	if err != nil {
		t.Fatalf("ParseClasses: %v", err)
	}
	if !slices.Equal(got, ClassList{"up", "down", "stop"}) {
		t.Errorf("ParseClasses = %q", got)
	}
	if _, err := ParseClasses("up,,stop"); err == nil {
		t.Error("ParseClasses accepted empty entry")
	}
}

func TestClassList_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want ClassList
	}{
		{name: "string", doc: "classes: up,down", want: ClassList{"up", "down"}},
		{name: "sequence", doc: "classes: [up, down, stop]", want: ClassList{"up", "down", "stop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				Classes ClassList `yaml:"classes"`
			}
			if err := yaml.Unmarshal([]byte(tt.doc), &v); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !slices.Equal(v.Classes, tt.want) {
				t.Errorf("classes = %q, want %q", v.Classes, tt.want)
			}
		})
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	doc := `{"classes":[{"name":"yes"},{"name":"no"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if !slices.Equal(got, ClassList{"yes", "no"}) {
		t.Errorf("classes = %q", got)
	}

	cfg := testConfig()
	cfg.Classes = nil
	cfg.MetadataPath = path
	classes, err := cfg.ResolveClasses()
	if err != nil || len(classes) != 2 {
		t.Errorf("ResolveClasses = %q, %v", classes, err)
	}
}
