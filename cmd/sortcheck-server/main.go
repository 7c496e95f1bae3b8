package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/sortcheck/api"
	"github.com/use-agent/sortcheck/cache"
	"github.com/use-agent/sortcheck/config"
	"github.com/use-agent/sortcheck/progress"
	"github.com/use-agent/sortcheck/runner"
	"github.com/use-agent/sortcheck/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
	cfg := config.Load()
	if cfg.Source.File != "" {
		if err := cfg.ApplySourceFile(cfg.Source.File); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sortcheck server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetcher", cfg.Source.Fetcher,
		"startURL", cfg.Source.StartURL,
	)

	// ── 3. Build engine and page source ─────────────────────────────
	eng, err := runner.NewEngine(cfg)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	src, err := runner.NewPageSource(cfg)
	if err != nil {
		slog.Error("failed to initialise page source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	// ── 4. Progress fan-out and run store ───────────────────────────
	hub := progress.NewHub(64)
	sinks := progress.Multi{hub, progress.LogSink{}}
	if wh := webhook.NewSink(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.AllEvents); wh != nil {
		sinks = append(sinks, wh)
		slog.Info("webhook delivery enabled", "url", cfg.Webhook.URL, "allEvents", cfg.Webhook.AllEvents)
	}

	store := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer store.Close()

	rn := runner.New(eng, src.Sessions, store, sinks, cfg.Run.TargetCount)

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(rn, hub, src.PoolStats, cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rn.Shutdown(ctx); err != nil {
		slog.Warn("active run did not stop in time", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("sortcheck server stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
