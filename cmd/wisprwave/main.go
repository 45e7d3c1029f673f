package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/wisprwave/internal/audio"
	"github.com/chaz8081/wisprwave/internal/config"
	"github.com/chaz8081/wisprwave/internal/history"
	"github.com/chaz8081/wisprwave/internal/hotkey"
	"github.com/chaz8081/wisprwave/internal/inject"
	"github.com/chaz8081/wisprwave/internal/models"
	"github.com/chaz8081/wisprwave/internal/observe"
	"github.com/chaz8081/wisprwave/internal/session"
	"github.com/chaz8081/wisprwave/internal/transcribe/whispercpp"
)

var version = "dev"

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/wisprwave/config.yaml)")
	download := flag.String("download", "", "download a whisper model (tiny.en, base.en, small.en, medium.en, large-v3-turbo) and exit")
	showHistory := flag.Int("history", 0, "print the last N dictations and exit")
	legacy := flag.Bool("legacy", false, "record first, decode after release")
	noBoost := flag.Bool("no-boost", false, "disable streaming decodes")
	flag.Parse()

	if *download != "" {
		if err := runDownload(*download); err != nil {
			fmt.Fprintf(os.Stderr, "download: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *configPath == "" {
		if path, err := config.WriteDefault(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not write default config: %v\n", err)
		} else if path != "" {
			fmt.Printf("Wrote default config to %s\n", path)
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *legacy {
		cfg.Stream.Legacy = true
	}
	if *noBoost {
		cfg.Stream.Boost = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if *showHistory > 0 {
		if err := printHistory(cfg, *showHistory); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printBanner(cfg)

	if err := run(cfg); err != nil {
		slog.Error("wisprwave exited", "error", err)
		os.Exit(1)
	}
	slog.Info("Goodbye!")
	// Exit directly to avoid gohook's C cleanup crash.
	// The OS reclaims the event hook on process exit.
	os.Exit(0)
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var metrics *observe.Metrics
	if cfg.Metrics.Listen != "" {
		m, shutdown, err := observe.InitProvider(ctx, version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		metrics = m
		g.Go(func() error { return observe.Serve(ctx, cfg.Metrics.Listen) })
		slog.Info("Metrics endpoint ready", "addr", cfg.Metrics.Listen)
	}

	opts := session.Options{
		Boost:           cfg.Stream.Boost,
		Legacy:          cfg.Stream.Legacy,
		Live:            cfg.Inject.Live,
		DecodeInterval:  cfg.Stream.DecodeInterval,
		MinUnconfirmed:  cfg.Stream.MinUnconfirmed,
		Reserve:         cfg.Stream.Reserve,
		DisplayInterval: cfg.Session.DisplayInterval,
		MinDuration:     cfg.Session.MinDuration,
		Metrics:         metrics,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.History = store
	}

	chunk := time.Duration(cfg.Audio.ChunkMs) * time.Millisecond
	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, chunk)
	if err != nil {
		return fmt.Errorf("%w\n\nEnsure microphone access is granted in System Settings > Privacy & Security > Microphone", err)
	}
	defer recorder.Close()
	slog.Info("Audio recorder ready")

	robot := inject.NewRobot(
		inject.WithMethod(cfg.Inject.Method),
		inject.WithRestoreDelay(time.Duration(cfg.Inject.RestoreDelayMs)*time.Millisecond),
		inject.WithWordDelay(time.Duration(cfg.Inject.WordDelayMs)*time.Millisecond),
		inject.WithPermissionCheck(inject.AccessibilityTrusted),
	)
	if !inject.AccessibilityTrusted() {
		slog.Warn("Accessibility permission not granted; text will not be typed",
			"fix", "System Settings > Privacy & Security > Accessibility")
	}
	injector := inject.NewEngine(robot, inject.WithMetrics(metrics))
	defer injector.Close()
	slog.Info("Text injector ready", "method", cfg.Inject.Method)

	ctrl := session.New(recorder, injector, opts)
	g.Go(func() error { return ctrl.Run(ctx) })

	// The model loads in the background; presses are refused until it is ready.
	var engine *whispercpp.Engine
	g.Go(func() error {
		start := time.Now()
		e, err := whispercpp.New(cfg.Model.Path,
			whispercpp.WithLanguage(cfg.Model.Language),
			whispercpp.WithThreads(uint(cfg.Model.Threads)),
		)
		if err != nil {
			slog.Error("Failed to load whisper model; run 'wisprwave -download base.en'",
				"path", cfg.Model.Path, "error", err)
			return nil
		}
		engine = e
		ctrl.SetEngine(e)
		slog.Info("Model loaded", "path", cfg.Model.Path, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil
	})

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	go listener.Start()
	g.Go(func() error { return forwardHotkeys(ctx, listener, ctrl) })
	g.Go(func() error { return logStatuses(ctx, ctrl) })
	g.Go(func() error { return pauseOnSignal(ctx, ctrl) })

	slog.Info("Ready! Press " + strings.Join(cfg.Hotkey.Keys, "+") + " to dictate. Ctrl+C to quit.",
		"pause", fmt.Sprintf("kill -USR1 %d", os.Getpid()))

	err = g.Wait()
	if engine != nil {
		_ = engine.Close()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func forwardHotkeys(ctx context.Context, l *hotkey.Listener, ctrl *session.Controller) error {
	events := l.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				slog.Info("Hotkey listener stopped")
				return nil
			}
			switch ev.Type {
			case hotkey.EventStart:
				ctrl.Press()
			case hotkey.EventStop:
				ctrl.Release()
			case hotkey.EventToggle:
				ctrl.Toggle()
			}
		}
	}
}

// pauseOnSignal flips dictation on and off on each SIGUSR1.
func pauseOnSignal(ctx context.Context, ctrl *session.Controller) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	enabled := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			enabled = !enabled
			ctrl.SetEnabled(enabled)
			slog.Info("Dictation toggled", "enabled", enabled)
		}
	}
}

func logStatuses(ctx context.Context, ctrl *session.Controller) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-ctrl.Statuses():
			switch {
			case st.Message != "":
				slog.Warn(st.Message)
			case st.State == session.Listening && st.Text != "":
				slog.Debug("partial", "text", st.Text)
			case st.State == session.Done:
				slog.Info("Transcribed", "text", st.Text)
			case st.State == session.Error:
				slog.Error("Dictation failed", "reason", st.Reason)
			default:
				slog.Debug("state", "state", st.State)
			}
		}
	}
}

func runDownload(name string) error {
	d := &models.Downloader{Progress: os.Stdout}
	fmt.Printf("Downloading %s to %s\n", name, config.DefaultModelsDir())
	path, err := d.Download(context.Background(), name, config.DefaultModelsDir())
	if err != nil {
		return err
	}
	fmt.Printf("Model ready: %s\n", path)
	return nil
}

func printHistory(cfg *config.Config, n int) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-6s %-5s %5.1fs  %s\n",
			e.CreatedAt.Format(time.DateTime), e.Mode, e.Outcome, e.AudioSeconds, e.Text)
	}
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	mode := "boost"
	if !cfg.Stream.Boost || cfg.Stream.Legacy {
		mode = "legacy"
	}
	fmt.Println("=== wisprwave ===")
	fmt.Printf("  Model:   %s\n", cfg.Model.Path)
	if installed := models.Installed(config.DefaultModelsDir()); len(installed) > 0 {
		names := make([]string, len(installed))
		for i, m := range installed {
			names[i] = m.Name
		}
		fmt.Printf("  Local:   %s\n", strings.Join(names, ", "))
	}
	fmt.Printf("  Hotkey:  %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Audio:   %dHz, %dch, %dms chunks\n", cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.ChunkMs)
	fmt.Printf("  Decode:  %s (live: %t)\n", mode, cfg.Inject.Live && mode == "boost")
	fmt.Printf("  Inject:  %s\n", cfg.Inject.Method)
	if cfg.Metrics.Listen != "" {
		fmt.Printf("  Metrics: http://%s/metrics\n", cfg.Metrics.Listen)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
