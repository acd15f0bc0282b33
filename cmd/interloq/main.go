// Command interloq runs the live speech translation engine: it captures the
// microphone, detects utterance boundaries, translates each utterance through
// the configured backend chain, plays the answer, and serves the control
// gateway for the UI.
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
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/interloq/interloq/internal/classify"
	"github.com/interloq/interloq/internal/config"
	"github.com/interloq/interloq/internal/detect"
	"github.com/interloq/interloq/internal/gateway"
	"github.com/interloq/interloq/internal/history"
	"github.com/interloq/interloq/internal/monitor"
	"github.com/interloq/interloq/internal/observe"
	"github.com/interloq/interloq/internal/orchestrator"
	"github.com/interloq/interloq/internal/resilience"
	"github.com/interloq/interloq/internal/state"
	"github.com/interloq/interloq/internal/trim"
	"github.com/interloq/interloq/pkg/capture"
	"github.com/interloq/interloq/pkg/capture/ffmpeg"
	"github.com/interloq/interloq/pkg/playback/ffplay"
	"github.com/interloq/interloq/pkg/session"
	"github.com/interloq/interloq/pkg/translate"
	"github.com/interloq/interloq/pkg/translate/gemini"
	"github.com/interloq/interloq/pkg/translate/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "interloq: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "interloq: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("interloq starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"languages", cfg.Session.SourceLang+"↔"+cfg.Session.TargetLang,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Translation backends ──────────────────────────────────────────────────
	provider, err := buildProviderChain(ctx, cfg.Translation)
	if err != nil {
		slog.Error("failed to build translation providers", "err", err)
		return 1
	}

	// ── History store (optional) ──────────────────────────────────────────────
	var store *history.Store
	if cfg.History.PostgresDSN != "" {
		store, err = history.New(ctx, cfg.History.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect history store", "err", err)
			return 1
		}
		defer store.Close()
		slog.Info("history store connected")
	}

	// ── Audio I/O ─────────────────────────────────────────────────────────────
	mon := monitor.New(ffmpeg.New(cfg.Capture.Command), capture.Config{
		SampleRate:  cfg.Capture.SampleRate,
		Channels:    cfg.Capture.Channels,
		InputFormat: cfg.Capture.InputFormat,
		InputDevice: cfg.Capture.InputDevice,
	})
	sink := ffplay.New(cfg.Playback.Command)

	trimmer := trim.Default()
	if cfg.Trim.WindowRMSThreshold > 0 {
		trimmer.WindowRMSThreshold = cfg.Trim.WindowRMSThreshold
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	orc := orchestrator.New(state.NewMachine(), orchestrator.Deps{
		Monitor:    mon,
		Classifier: classify.Default(),
		Trimmer:    trimmer,
		Provider:   provider,
		Sink:       sink,
		Sessions:   session.NewMemoryService(cfg.Session.TTL.Std()),
		History:    store,
		Metrics:    metrics,
	}, orchestrator.Config{
		SourceLang:         cfg.Session.SourceLang,
		TargetLang:         cfg.Session.TargetLang,
		Premium:            cfg.Session.Premium,
		SampleRate:         cfg.Capture.SampleRate,
		Preroll:            cfg.Engine.Preroll.Std(),
		RetryDelay:         cfg.Engine.RetryDelay.Std(),
		TranslationTimeout: cfg.Translation.Timeout.Std(),
		Detector: detect.Config{
			SilenceThreshold: cfg.Detection.Threshold,
			CountdownTicks:   cfg.Detection.CountdownTicks,
		},
		TrimDisabled: cfg.Trim.Disabled,
	})

	// ── Gateway ───────────────────────────────────────────────────────────────
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           gateway.New(orc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orc.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("gateway listening", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	slog.Info("engine ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProviderChain instantiates every configured backend and wraps them in
// the breaker chain, in configuration order.
func buildProviderChain(ctx context.Context, cfg config.TranslationConfig) (translate.Provider, error) {
	providers := make([]translate.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := buildProvider(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		providers = append(providers, p)
		slog.Info("translation provider configured", "name", pc.Name)
	}

	return resilience.NewChain(resilience.BreakerConfig{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown.Std(),
	}, providers...), nil
}

func buildProvider(ctx context.Context, pc config.ProviderConfig) (translate.Provider, error) {
	switch pc.Name {
	case "gemini":
		var opts []gemini.Option
		if pc.Model != "" {
			opts = append(opts, gemini.WithModel(pc.Model))
		}
		if pc.PremiumModel != "" {
			opts = append(opts, gemini.WithPremiumModel(pc.PremiumModel))
		}
		return gemini.New(ctx, pc.APIKey, opts...)
	case "openai":
		var opts []openai.Option
		if pc.Model != "" {
			opts = append(opts, openai.WithChatModel(pc.Model))
		}
		if pc.PremiumModel != "" {
			opts = append(opts, openai.WithPremiumModel(pc.PremiumModel))
		}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		return openai.New(pc.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", pc.Name)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
