package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/MrWong99/wakeline/internal/pipeline"
	"github.com/MrWong99/wakeline/internal/stream"
	"github.com/MrWong99/wakeline/pkg/audio"
	"github.com/MrWong99/wakeline/pkg/speech"
)

const (
	rate     = 16000
	frameLen = 320 // 20 ms
)

// loudness activates the context on a loud frame and deactivates it on a
// quiet one. A frame starting with -1 fails.
type loudness struct {
	closed atomic.Bool
}

func (l *loudness) Process(sc *speech.Context, frame []int16) error {
	if frame[0] == -1 {
		return errors.New("model exploded")
	}
	loud := false
	for _, s := range frame {
		if s > 1000 || s < -1000 {
			loud = true
			break
		}
	}
	if loud && !sc.IsActive() {
		sc.TraceInfo("loud")
	}
	sc.SetActive(loud)
	return nil
}

func (l *loudness) Reset() error { return nil }

func (l *loudness) Close() error {
	l.closed.Store(true)
	return nil
}

func startServer(t *testing.T, stages chan<- *loudness) *httptest.Server {
	t.Helper()
	srv := stream.NewServer(rate, func() (*pipeline.Pipeline, error) {
		l := &loudness{}
		if stages != nil {
			stages <- l
		}
		return pipeline.New(frameLen, []pipeline.Stage{{Name: "loudness", Processor: l}})
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/detect?" + query
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, query), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) stream.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var m stream.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func write(t *testing.T, conn *websocket.Conn, typ websocket.MessageType, data []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, typ, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func constant(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestServer_PCM16Events(t *testing.T) {
	t.Parallel()
	ts := startServer(t, nil)
	conn := dial(t, ts, "codec=pcm16")

	// One quiet frame, one loud frame split over two messages.
	write(t, conn, websocket.MessageBinary, audio.PCM(constant(frameLen+100, 0)))
	write(t, conn, websocket.MessageBinary, audio.PCM(constant(frameLen-100, 5000)))

	m := readMessage(t, conn)
	if m.Event != "activate" {
		t.Fatalf("event = %q, want activate", m.Event)
	}
	if m.OffsetMs != 20 {
		t.Errorf("offset = %dms, want 20", m.OffsetMs)
	}

	write(t, conn, websocket.MessageBinary, audio.PCM(constant(frameLen, 0)))
	if m := readMessage(t, conn); m.Event != "deactivate" {
		t.Errorf("event = %q, want deactivate", m.Event)
	}
}

func TestServer_TraceCommand(t *testing.T) {
	t.Parallel()
	ts := startServer(t, nil)
	conn := dial(t, ts, "")

	write(t, conn, websocket.MessageText, []byte(`{"command":"trace","level":"info"}`))
	write(t, conn, websocket.MessageBinary, audio.PCM(constant(frameLen, 5000)))

	if m := readMessage(t, conn); m.Event != "trace" || m.Message != "loud" {
		t.Errorf("message = %+v, want trace \"loud\"", m)
	}
	if m := readMessage(t, conn); m.Event != "activate" {
		t.Errorf("event = %q, want activate", m.Event)
	}
}

func TestServer_BadInput(t *testing.T) {
	t.Parallel()
	ts := startServer(t, nil)
	conn := dial(t, ts, "codec=pcm16&channels=2")

	write(t, conn, websocket.MessageBinary, []byte{1, 2, 3})
	if m := readMessage(t, conn); m.Event != "error" || !strings.Contains(m.Error, "whole samples") {
		t.Errorf("message = %+v, want a whole samples error", m)
	}
	write(t, conn, websocket.MessageText, []byte(`{"command":"dance"}`))
	if m := readMessage(t, conn); m.Event != "error" || !strings.Contains(m.Error, "dance") {
		t.Errorf("message = %+v, want unknown command error", m)
	}
}

func TestServer_PipelineErrorClosesSession(t *testing.T) {
	t.Parallel()
	stages := make(chan *loudness, 1)
	ts := startServer(t, stages)
	conn := dial(t, ts, "")

	write(t, conn, websocket.MessageBinary, audio.PCM(constant(frameLen, -1)))
	m := readMessage(t, conn)
	if m.Event != "error" || !strings.Contains(m.Error, "model exploded") {
		t.Fatalf("message = %+v, want pipeline error", m)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusInternalError {
		t.Errorf("close status = %v, want %v", status, websocket.StatusInternalError)
	}

	stage := <-stages
	deadline := time.Now().Add(2 * time.Second)
	for !stage.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !stage.closed.Load() {
		t.Error("pipeline was not closed after the session ended")
	}
}

func TestServer_Opus(t *testing.T) {
	t.Parallel()
	ts := startServer(t, nil)
	conn := dial(t, ts, "codec=opus&rate=16000")

	enc, err := gopus.NewEncoder(rate, 1, gopus.Voip)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for range 5 {
		packet, err := enc.Encode(constant(frameLen, 0), frameLen, 4000)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		write(t, conn, websocket.MessageBinary, packet)
	}
	// Silence produces no events; an invalid command shows how far the
	// session got.
	write(t, conn, websocket.MessageText, []byte(`not json`))
	if m := readMessage(t, conn); m.Event != "error" || m.OffsetMs != 100 {
		t.Errorf("message = %+v, want an error at 100ms", m)
	}
}

// samples counts what reaches the pipeline.
type samples struct {
	n atomic.Int64
}

func (c *samples) Process(_ *speech.Context, frame []int16) error {
	c.n.Add(int64(len(frame)))
	return nil
}

func (c *samples) Reset() error { return nil }
func (c *samples) Close() error { return nil }

func TestServer_UsesPipelineSampleRate(t *testing.T) {
	t.Parallel()

	// The server default stays at 16 kHz while each pipeline runs at 8 kHz
	// with 20 ms frames, as after a reload of audio.sample_rate.
	const pipelineRate, pipelineFrame = 8000, 160
	counters := make(chan *samples, 2)
	srv := stream.NewServer(rate, func() (*pipeline.Pipeline, error) {
		c := &samples{}
		counters <- c
		return pipeline.New(pipelineFrame, []pipeline.Stage{{Name: "count", Processor: c}},
			pipeline.WithSampleRate(pipelineRate))
	})
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	tests := []struct {
		query string
		sent  int // one second of audio at the client's rate
	}{
		{"codec=pcm16&rate=16000", 16000},
		{"codec=pcm16", pipelineRate},
	}
	for _, tt := range tests {
		conn := dial(t, ts, tt.query)
		c := <-counters
		write(t, conn, websocket.MessageBinary, audio.PCM(constant(tt.sent, 0)))
		write(t, conn, websocket.MessageText, []byte(`not json`))

		m := readMessage(t, conn)
		if m.Event != "error" || m.OffsetMs != 1000 {
			t.Errorf("%s: message = %+v, want an error at 1000ms", tt.query, m)
		}
		if got := c.n.Load(); got != pipelineRate {
			t.Errorf("%s: pipeline got %d samples for 1s, want %d", tt.query, got, pipelineRate)
		}
	}
}

func TestServer_RejectsBadQuery(t *testing.T) {
	t.Parallel()
	ts := startServer(t, nil)
	tests := []string{"codec=mp3", "rate=abc", "channels=0", "trace=loud", "codec=opus&rate=44100"}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			t.Parallel()
			resp, err := http.Get(ts.URL + "/v1/detect?" + q)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}
