// Package stream serves the detection pipeline over WebSocket.
//
// A client opens GET /v1/detect?codec=pcm16|opus and sends audio as binary
// messages. Every connection gets its own pipeline; pipeline events are sent
// back as JSON text messages.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/internal/pipeline"
	"github.com/MrWong99/wakeline/pkg/audio"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// Codecs accepted in the codec query parameter.
const (
	CodecPCM16 = "pcm16"
	CodecOpus  = "opus"
)

const (
	defaultOpusRate = 48000
	readLimit       = 1 << 20
)

// PipelineFactory builds a fresh pipeline for one connection.
type PipelineFactory func() (*pipeline.Pipeline, error)

// Message is the JSON payload of every text message sent to the client.
type Message struct {
	Event      string  `json:"event"`
	OffsetMs   int64   `json:"offset_ms"`
	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Command is a JSON text message sent by the client.
type Command struct {
	// Command is "reset" or "trace".
	Command string `json:"command"`

	// Level is the trace level for the "trace" command.
	Level string `json:"level,omitempty"`
}

// Server handles detection sessions.
type Server struct {
	sampleRate  int
	newPipeline PipelineFactory
	metrics     *observe.Metrics
	acceptOpts  *websocket.AcceptOptions
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics counts live sessions on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns allows cross-origin browser clients from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.acceptOpts.OriginPatterns = patterns }
}

// NewServer returns a Server. Audio is converted to the rate each pipeline
// reports; sampleRate applies to pipelines that report none.
func NewServer(sampleRate int, newPipeline PipelineFactory, opts ...Option) *Server {
	s := &Server{
		sampleRate:  sampleRate,
		newPipeline: newPipeline,
		acceptOpts:  &websocket.AcceptOptions{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the detection route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /v1/detect", s)
}

// ServeHTTP upgrades the request and runs one detection session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceLevel, traceSet := speech.TraceNone, false
	if name := r.URL.Query().Get("trace"); name != "" {
		lvl, ok := speech.ParseTraceLevel(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown trace level %q", name), http.StatusBadRequest)
			return
		}
		traceLevel, traceSet = lvl, true
	}

	p, err := s.newPipeline()
	if err != nil {
		observe.Logger(r.Context()).Error("stream: build pipeline", "err", err)
		http.Error(w, "pipeline unavailable", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("stream: close pipeline", "err", err)
		}
	}()
	if traceSet {
		p.Context().SetTraceLevel(traceLevel)
	}
	rate := p.SampleRate()
	if rate <= 0 {
		rate = s.sampleRate
	}
	dec, err := decoderFor(r, rate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, s.acceptOpts)
	if err != nil {
		observe.Logger(r.Context()).Warn("stream: accept", "err", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, span := observe.StartSpan(r.Context(), "stream.session")
	defer span.End()
	if s.metrics != nil {
		s.metrics.StreamSessions.Add(ctx, 1)
		defer s.metrics.StreamSessions.Add(ctx, -1)
	}

	sess := newSession(ctx, conn, p, dec, rate)
	status, reason := sess.run()
	conn.Close(status, reason)
}

// decoderFor picks the decoder named by the codec query parameter. The
// optional rate and channels parameters describe the client's audio; raw PCM
// defaults to mono at pipelineRate.
func decoderFor(r *http.Request, pipelineRate int) (decoder, error) {
	q := r.URL.Query()
	codec := q.Get("codec")
	if codec == "" {
		codec = CodecPCM16
	}

	format := audio.Format{SampleRate: pipelineRate, Channels: 1}
	if codec == CodecOpus {
		format.SampleRate = defaultOpusRate
	}
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"rate", &format.SampleRate},
		{"channels", &format.Channels},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s %q", p.key, v)
		}
		*p.dst = n
	}

	switch codec {
	case CodecPCM16:
		return pcmDecoder{format: format}, nil
	case CodecOpus:
		d, err := audio.NewOpusDecoder(format)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}

// decoder turns one binary message into PCM.
type decoder interface {
	Decode(msg []byte) (audio.AudioFrame, error)
}

type pcmDecoder struct {
	format audio.Format
}

func (d pcmDecoder) Decode(msg []byte) (audio.AudioFrame, error) {
	if len(msg)%(2*d.format.Channels) != 0 {
		return audio.AudioFrame{}, fmt.Errorf("pcm16 message of %d bytes is not whole samples", len(msg))
	}
	return audio.AudioFrame{Data: msg, SampleRate: d.format.SampleRate, Channels: d.format.Channels}, nil
}

// session is the state of one connection.
type session struct {
	ctx      context.Context
	conn     *websocket.Conn
	pipeline *pipeline.Pipeline
	dec      decoder
	conv     *audio.Converter
	framer   *audio.Framer
	rate     int
	frames   int64
	pending  []Message
}

func newSession(ctx context.Context, conn *websocket.Conn, p *pipeline.Pipeline, dec decoder, rate int) *session {
	s := &session{
		ctx:      ctx,
		conn:     conn,
		pipeline: p,
		dec:      dec,
		conv:     &audio.Converter{SampleRate: rate},
		framer:   audio.NewFramer(p.FrameSamples()),
		rate:     rate,
	}
	p.Context().AddListener(s.listen)
	return s
}

// listen queues an event; queued events are written after each message.
func (s *session) listen(ev speech.Event, sc *speech.Context) {
	m := Message{Event: ev.String(), OffsetMs: s.offsetMs()}
	switch ev {
	case speech.EventRecognize:
		m.Transcript = sc.Transcript()
		m.Confidence = sc.Confidence()
	case speech.EventTrace:
		m.Message = sc.Message()
	case speech.EventError:
		if err := sc.Err(); err != nil {
			m.Error = err.Error()
		}
	}
	observe.SpanEvent(s.ctx, m.Event, attribute.String("transcript", m.Transcript))
	s.pending = append(s.pending, m)
}

func (s *session) offsetMs() int64 {
	return s.frames * int64(s.pipeline.FrameSamples()) * 1000 / int64(s.rate)
}

// run reads messages until the client disconnects or the pipeline fails and
// returns the close status to send.
func (s *session) run() (websocket.StatusCode, string) {
	log := observe.Logger(s.ctx)
	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return websocket.StatusNormalClosure, ""
			}
			if !errors.Is(err, context.Canceled) {
				log.Debug("stream: read", "err", err)
			}
			return websocket.StatusGoingAway, "read failed"
		}

		var procErr error
		switch typ {
		case websocket.MessageBinary:
			procErr = s.handleAudio(data)
		case websocket.MessageText:
			s.handleCommand(data)
		}
		if err := s.flush(); err != nil {
			log.Debug("stream: write", "err", err)
			return websocket.StatusGoingAway, "write failed"
		}
		if procErr != nil {
			log.Warn("stream: detection failed", "err", procErr)
			return websocket.StatusInternalError, "detection failed"
		}
	}
}

func (s *session) handleAudio(data []byte) error {
	frame, err := s.dec.Decode(data)
	if err != nil {
		s.pending = append(s.pending, Message{Event: "error", OffsetMs: s.offsetMs(), Error: err.Error()})
		return nil
	}
	frame = s.conv.Convert(frame)
	return s.framer.Write(audio.Samples(frame.Data), func(f []int16) error {
		err := s.pipeline.Process(s.ctx, f)
		s.frames++
		return err
	})
}

func (s *session) handleCommand(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.pending = append(s.pending, Message{Event: "error", OffsetMs: s.offsetMs(), Error: "invalid command: " + err.Error()})
		return
	}
	switch cmd.Command {
	case "reset":
		s.framer.Reset()
		if err := s.pipeline.Reset(); err != nil {
			s.pending = append(s.pending, Message{Event: "error", OffsetMs: s.offsetMs(), Error: err.Error()})
		}
	case "trace":
		lvl, ok := speech.ParseTraceLevel(cmd.Level)
		if !ok {
			s.pending = append(s.pending, Message{Event: "error", OffsetMs: s.offsetMs(), Error: fmt.Sprintf("unknown trace level %q", cmd.Level)})
			return
		}
		s.pipeline.Context().SetTraceLevel(lvl)
	default:
		s.pending = append(s.pending, Message{Event: "error", OffsetMs: s.offsetMs(), Error: fmt.Sprintf("unknown command %q", cmd.Command)})
	}
}

// flush writes queued events in order.
func (s *session) flush() error {
	for _, m := range s.pending {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := s.conn.Write(s.ctx, websocket.MessageText, data); err != nil {
			return err
		}
	}
	s.pending = s.pending[:0]
	return nil
}
