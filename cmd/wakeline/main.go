// Command wakeline runs the wakeword and keyword detection pipeline, either
// over a WebSocket server or against a single audio input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/wakeline/internal/config"
	"github.com/MrWong99/wakeline/internal/health"
	"github.com/MrWong99/wakeline/internal/observe"
	"github.com/MrWong99/wakeline/internal/pipeline"
	"github.com/MrWong99/wakeline/internal/stream"
	"github.com/MrWong99/wakeline/pkg/provider/inference"
	"github.com/MrWong99/wakeline/pkg/provider/inference/onnx"
	"github.com/MrWong99/wakeline/pkg/provider/vad"
	"github.com/MrWong99/wakeline/pkg/provider/vad/energy"
	"github.com/MrWong99/wakeline/pkg/speech"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	input := flag.String("input", "", `audio to analyse instead of serving: a .wav file, a raw PCM16 file, "-" for stdin or "mic"`)
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "wakeline: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "wakeline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("wakeline starting",
		"version", version,
		"config", *configPath,
		"stages", cfg.Pipeline.Stages,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	promReg := observe.NewRegistry()
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registerer:     promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Registry and shared engines ───────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg, metrics)

	eng := newEngines(reg)
	defer eng.Close()
	env, err := eng.For(cfg)
	if err != nil {
		slog.Error("failed to initialise engines", "err", err)
		return 1
	}

	if *input != "" {
		return runInput(ctx, cfg, reg, env, metrics, *input)
	}

	printStartupSummary(cfg)
	srv := server{
		reg:         reg,
		engines:     eng,
		metrics:     metrics,
		metricsPage: observe.MetricsHandler(promReg),
		level:       &level,
	}
	if err := srv.run(ctx, *configPath, cfg); err != nil {
		slog.Error("server failed", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Built-in registrations ────────────────────────────────────────────────────

func registerBuiltins(reg *config.Registry, m *observe.Metrics) {
	reg.RegisterVAD("energy", func(config.VADConfig) (vad.Engine, error) {
		return energy.New(), nil
	})
	reg.RegisterInference("onnx", func(c config.InferenceConfig) (inference.Loader, error) {
		return onnx.NewLoader(c.LibraryPath), nil
	})
	pipeline.RegisterBuiltins(reg, m)
}

// ── Serve mode ────────────────────────────────────────────────────────────────

// server holds what serve mode shares across every connection.
type server struct {
	reg         *config.Registry
	engines     *engines
	metrics     *observe.Metrics
	metricsPage http.Handler
	level       *slog.LevelVar
}

func (s *server) run(ctx context.Context, path string, cfg *config.Config) error {
	watcher, err := config.NewWatcher(path, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			s.level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.PipelineChanged || diff.ThresholdsChanged || diff.TraceLevelChanged {
			slog.Info("pipeline settings changed; applied to new sessions")
		}
		if diff.RestartRequired {
			slog.Warn("configuration change requires a restart to take effect")
		}
	})
	if err != nil {
		return err
	}

	var ready atomic.Bool
	mux := http.NewServeMux()
	health.New(
		health.FilesFunc("models", func() []string { return modelPaths(watcher.Current()) }),
		health.Flag("server", &ready),
	).Register(mux)
	mux.Handle("GET /metrics", s.metricsPage)

	streams := stream.NewServer(cfg.Audio.SampleRate, func() (*pipeline.Pipeline, error) {
		cur := watcher.Current()
		env, err := s.engines.For(cur)
		if err != nil {
			return nil, err
		}
		return pipeline.Build(cur, s.reg, env, pipeline.WithMetrics(s.metrics))
	}, stream.WithMetrics(s.metrics))
	streams.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(s.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", srv.Addr, "tls", cfg.Server.TLS != nil)
		ready.Store(true)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return reloadOnHangup(gctx, watcher) })
	g.Go(func() error {
		<-gctx.Done()
		ready.Store(false)
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// reloadOnHangup rereads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, w *config.Watcher) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			changed, err := w.Reload()
			if err != nil {
				slog.Warn("config reload failed; keeping previous config", "err", err)
				continue
			}
			slog.Info("config reload requested", "changed", changed)
		}
	}
}

// modelPaths returns the model files of every configured detector stage.
func modelPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.HasStage(config.StageWakeword) {
		w := cfg.Wakeword
		paths = append(paths, w.FilterPath, w.EncodePath, w.DetectPath)
	}
	if cfg.HasStage(config.StageKeyword) {
		k := cfg.Keyword
		paths = append(paths, k.FilterPath, k.EncodePath, k.DetectPath, k.MetadataPath)
	}
	return paths
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        wakeline startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Audio", fmt.Sprintf("%d Hz / %d ms", cfg.Audio.SampleRate, cfg.Audio.FrameWidth))
	printRow("Inference", cfg.Inference.Name)
	if cfg.HasStage(config.StageVAD) {
		printRow("VAD", cfg.VAD.Name)
	}
	for i, s := range cfg.Pipeline.Stages {
		printRow(fmt.Sprintf("Stage %d", i+1), s)
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "..."
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// eventLogger logs pipeline events with their offset in the input.
type eventLogger struct {
	frameMs int
	frames  int64
}

func (l *eventLogger) listen(ev speech.Event, sc *speech.Context) {
	offset := l.frames * int64(l.frameMs)
	switch ev {
	case speech.EventRecognize:
		slog.Info("keyword recognized", "offset_ms", offset, "keyword", sc.Transcript(), "confidence", sc.Confidence())
	case speech.EventError:
		slog.Error("pipeline error", "offset_ms", offset, "err", sc.Err())
	case speech.EventTrace:
		slog.Debug("trace", "offset_ms", offset, "msg", sc.Message())
	default:
		slog.Info("pipeline event", "event", ev.String(), "offset_ms", offset)
	}
}
