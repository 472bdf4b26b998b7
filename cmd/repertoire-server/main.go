// Package main implements the repertoire server: a RESTful API over the
// opening repertoire store, winrate source and practice scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repertoire/cmd/repertoire-server/cli"
	"repertoire/internal/config"
	"repertoire/internal/logx"
	"repertoire/internal/server/http"
	"repertoire/internal/server/processor"
	"repertoire/internal/server/scheduler"
	"repertoire/internal/server/service"
	"repertoire/internal/server/session"
	"repertoire/internal/server/storage"
	"repertoire/internal/server/winrate"

	"github.com/rs/zerolog"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	// Check for CLI maintenance commands
	if len(os.Args) > 1 && (os.Args[1] == "db" || os.Args[1] == "corpus") {
		if err := cli.Run(os.Args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  = flag.String("config", "", "Path to TOML configuration file")
		apiHost     = flag.String("api-host", "", "API server host (overrides config)")
		apiPort     = flag.Int("api-port", 0, "API server port (overrides config)")
		dev         = flag.Bool("dev", false, "Development mode (relaxed rate limits, debug logging)")
		storagePath = flag.String("storage-path", "", "Path to SQLite database file (overrides config)")
		source      = flag.String("winrate-source", "", "Winrate source: corpus or explorer (overrides config)")
		pidPath     = flag.String("pid", "", "Optional path to write PID file")
		pidLock     = flag.Bool("pid-lock", false, "Lock PID file to allow only one instance (requires -pid)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *apiHost, *apiPort, *dev, *storagePath, *source)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if cfg.Server.Dev {
		level = "debug"
	}
	log := logx.NewLogger(level)

	if err := run(cfg, *pidPath, *pidLock, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// applyFlags lets explicit flags win over file and environment settings
func applyFlags(cfg *config.Config, host string, port int, dev bool, storagePath, source string) {
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dev {
		cfg.Server.Dev = true
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if source != "" {
		cfg.Winrate.Source = source
	}
}

func run(cfg *config.Config, pidPath string, pidLock bool, log zerolog.Logger) error {
	if pidLock && pidPath == "" {
		return fmt.Errorf("-pid-lock flag requires the -pid flag to be set")
	}
	if pidPath != "" {
		cleanup, err := managePIDFile(pidPath, pidLock)
		if err != nil {
			return fmt.Errorf("failed to manage PID file: %w", err)
		}
		defer cleanup()
		log.Info().Str("path", pidPath).Bool("lock", pidLock).Msg("PID file created")
	}

	// 1. Storage
	log.Info().Str("path", cfg.Storage.Path).Bool("wal", cfg.Storage.WAL).Msg("opening storage")
	store, err := storage.NewStore(cfg.Storage.Path, cfg.Storage.WAL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.InitDB(); err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// 2. Winrate source and scheduler
	counter, err := newCounter(cfg, store)
	if err != nil {
		store.Close()
		return err
	}
	winrates := winrate.NewSource(counter, cfg.Winrate.Timeout, cfg.Winrate.MinGames, log)

	curve, err := scheduler.NewCurve(cfg.Scheduler.Curve, cfg.Scheduler.Base, cfg.Scheduler.Factor, cfg.Scheduler.MaxStage)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to build review curve: %w", err)
	}

	// 3. Service, cursors and processor
	sessions := session.NewRegistry(cfg.Session.TTL, log)
	svc := service.New(store, winrates, scheduler.New(curve), sessions, service.Options{
		CascadeDelete: cfg.Graph.CascadeDelete,
		OwnMovesOnly:  cfg.Scheduler.OwnMovesOnly,
	}, log)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go svc.RunCleanupJob(cleanupCtx, cfg.Session.CleanupInterval)

	proc := processor.New(svc, log)

	// 4. HTTP transport
	app := http.NewFiberApp(proc, svc, http.Options{
		RateLimit: cfg.Server.RateLimit,
		DevMode:   cfg.Server.Dev,
	}, log)

	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().
			Str("addr", "http://"+apiAddr).
			Str("winrates", counter.Name()).
			Str("curve", curve.Name).
			Bool("cascade_delete", cfg.Graph.CascadeDelete).
			Bool("dev", cfg.Server.Dev).
			Msg("repertoire API server starting")

		if err := app.Listen(apiAddr); err != nil {
			log.Error().Err(err).Msg("API server listen error")
		}
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}

	cleanupCancel()

	// Drains pending review log writes and closes the store
	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("service shutdown error")
	}

	log.Info().Msg("server exited")
	return nil
}

func newCounter(cfg *config.Config, store *storage.Store) (winrate.Counter, error) {
	switch cfg.Winrate.Source {
	case "corpus":
		return winrate.NewCorpusCounter(store), nil
	case "explorer":
		return winrate.NewExplorerCounter(cfg.Winrate.ExplorerURL, cfg.Winrate.ExplorerToken,
			cfg.Winrate.Speeds, cfg.Winrate.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown winrate source %q", cfg.Winrate.Source)
	}
}
