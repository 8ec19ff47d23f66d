// Command cueline is the main entry point for the Cueline teleprompter server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cueline/cueline/internal/align"
	"github.com/cueline/cueline/internal/config"
	"github.com/cueline/cueline/internal/observe"
	"github.com/cueline/cueline/internal/scroll"
	"github.com/cueline/cueline/internal/server"
	"github.com/cueline/cueline/internal/session"
	"github.com/cueline/cueline/pkg/provider/stt"
	"github.com/cueline/cueline/pkg/provider/stt/deepgram"
	"github.com/cueline/cueline/pkg/provider/stt/failover"
	"github.com/cueline/cueline/pkg/provider/stt/replay"
	"github.com/cueline/cueline/pkg/provider/stt/whisper"
)

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
			fmt.Fprintf(os.Stderr, "cueline: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cueline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("cueline starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Speech provider ───────────────────────────────────────────────────────
	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		slog.Error("failed to build speech provider", "err", err)
		return 1
	}
	if provider == nil {
		slog.Warn("no speech provider configured — voice tracking disabled")
	} else {
		slog.Info("provider created", "kind", "stt", "name", cfg.Provider.Name)
	}

	printStartupSummary(cfg)

	srv := server.New(server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		Provider:       provider,
		StreamConfig:   streamConfig(cfg.Provider),
		SessionOptions: sessionOptions(cfg),
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProvider constructs the speech-to-text backend named in entry. An empty
// name returns (nil, nil): the server then runs without voice tracking. When
// fallback backends are configured the result is a failover chain that tries
// them in order.
func buildProvider(entry config.ProviderEntry) (stt.Provider, error) {
	primary, err := buildBackend(entry)
	if err != nil || primary == nil || len(entry.Fallbacks) == 0 {
		return primary, err
	}

	chain := failover.NewChain(entry.Name, primary, failover.BreakerConfig{})
	for _, fb := range entry.Fallbacks {
		backend, err := buildBackend(fb)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, backend)
	}
	return chain, nil
}

func buildBackend(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "deepgram":
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, deepgram.WithSampleRate(entry.SampleRate))
		}
		return deepgram.New(entry.APIKey, opts...)
	case "whisper":
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, whisper.WithSampleRate(entry.SampleRate))
		}
		return whisper.New(entry.Model, opts...)
	case "replay":
		return replay.Load(entry.FixturePath)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func streamConfig(entry config.ProviderEntry) stt.StreamConfig {
	cfg := stt.StreamConfig{
		SampleRate: entry.SampleRate,
		Channels:   1,
		Language:   entry.Language,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return cfg
}

// sessionOptions translates the tuning config into per-session options. Zero
// values are left out so the package defaults apply.
func sessionOptions(cfg *config.Config) []session.Option {
	var locOpts []align.LocatorOption
	if cfg.Tracking.PhraseLength > 0 {
		locOpts = append(locOpts, align.WithPhraseLength(cfg.Tracking.PhraseLength))
	}
	if cfg.Tracking.SearchWindow > 0 {
		locOpts = append(locOpts, align.WithSearchWindow(cfg.Tracking.SearchWindow))
	}
	if cfg.Tracking.MaxDistanceRatio > 0 {
		locOpts = append(locOpts, align.WithMaxDistanceRatio(cfg.Tracking.MaxDistanceRatio))
	}
	if cfg.Tracking.ProximityWeight > 0 {
		locOpts = append(locOpts, align.WithProximityWeight(cfg.Tracking.ProximityWeight))
	}

	var arbOpts []align.ArbiterOption
	if cfg.Tracking.MaxSmallJump > 0 {
		arbOpts = append(arbOpts, align.WithMaxSmallJump(cfg.Tracking.MaxSmallJump))
	}
	if cfg.Tracking.ConfirmThreshold > 0 {
		arbOpts = append(arbOpts, align.WithConfirmThreshold(cfg.Tracking.ConfirmThreshold))
	}
	if cfg.Tracking.LookAhead > 0 {
		arbOpts = append(arbOpts, align.WithLookAhead(cfg.Tracking.LookAhead))
	}

	pipeOpts := []align.PipelineOption{
		align.WithLocator(align.NewLocator(locOpts...)),
		align.WithArbiter(align.NewArbiter(arbOpts...)),
	}
	if cfg.Tracking.ConfidenceThreshold > 0 {
		pipeOpts = append(pipeOpts, align.WithConfidenceThreshold(cfg.Tracking.ConfidenceThreshold))
	}

	var scrollOpts []scroll.Option
	if cfg.Scroll.SmoothingAlpha > 0 {
		scrollOpts = append(scrollOpts, scroll.WithAlpha(cfg.Scroll.SmoothingAlpha))
	}
	if cfg.Scroll.WPM > 0 {
		scrollOpts = append(scrollOpts, scroll.WithWPM(cfg.Scroll.WPM))
	}
	if cfg.Scroll.FontSize > 0 || cfg.Scroll.LineSpacing > 0 {
		scrollOpts = append(scrollOpts, scroll.WithFontMetrics(cfg.Scroll.FontSize, cfg.Scroll.LineSpacing))
	}

	return []session.Option{
		session.WithPipelineOptions(pipeOpts...),
		session.WithScrollOptions(scrollOpts...),
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Cueline — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("STT provider", providerSummary(cfg.Provider))
	printField("Listen addr", cfg.Server.ListenAddr)
	printField("Log level", string(cfg.Server.LogLevel))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerSummary(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func printField(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
