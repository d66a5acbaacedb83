// Command dbbridge is an MCP server exposing PostgreSQL and Redis as tools
// over stdio.
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

	"github.com/MrWong99/dbbridge/internal/app"
	"github.com/MrWong99/dbbridge/internal/config"
	"github.com/MrWong99/dbbridge/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	withPostgres := flag.Bool("postgres", true, "connect to PostgreSQL and expose its tools")
	withRedis := flag.Bool("redis", true, "connect to Redis and expose its tools")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("dbbridge", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(config.LoadOptions{
		Path:            *configPath,
		EnvFile:         *envFile,
		DisablePostgres: !*withPostgres,
		DisableRedis:    !*withRedis,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dbbridge: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the protocol; every log line goes to stderr.
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	printStartupSummary(cfg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, version, app.WithProvider(provider))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = provider.Shutdown(context.Background())
		return 1
	}

	slog.Info("dbbridge ready", "tools", application.ToolNames())

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	pg, rd := "(disabled)", "(disabled)"
	if cfg.Postgres.Enabled {
		pg = cfg.Postgres.StoreConfig().Addr() + "/" + cfg.Postgres.Database
	}
	if cfg.Redis.Enabled {
		rd = cfg.Redis.StoreConfig().Addr() + fmt.Sprintf("/%d", cfg.Redis.DB)
	}
	httpAddr := cfg.Server.HTTPAddr
	if httpAddr == "" {
		httpAddr = "(disabled)"
	}
	slog.Info("dbbridge starting",
		"version", version,
		"postgres", pg,
		"redis", rd,
		"http_addr", httpAddr,
		"log_level", cfg.Server.LogLevel,
	)
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
