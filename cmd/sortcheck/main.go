package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/use-agent/sortcheck/config"
	"github.com/use-agent/sortcheck/models"
	"github.com/use-agent/sortcheck/progress"
	"github.com/use-agent/sortcheck/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
	cfg := config.Load()

	sourceFile := flag.String("source", cfg.Source.File, "YAML source profile overriding the listing and selectors")
	target := flag.Int("target", cfg.Run.TargetCount, "number of records to collect")
	startURL := flag.String("url", cfg.Source.StartURL, "first page of the listing")
	fetcher := flag.String("fetcher", cfg.Source.Fetcher, `page source: "browser" or "http"`)
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	if *sourceFile != "" {
		if err := cfg.ApplySourceFile(*sourceFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	// Explicit flags win over the profile.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Source.StartURL = *startURL
		case "fetcher":
			cfg.Source.Fetcher = *fetcher
		}
	})
	cfg.Run.TargetCount = *target
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	eng, err := runner.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	src, err := runner.NewPageSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rn := runner.New(eng, src.Sessions, nil, progress.SinkFunc(func(ev models.ProgressEvent) {
		switch ev.Type {
		case models.EventStatus:
			fmt.Fprintln(os.Stderr, ev.Message)
		case models.EventBatch:
			fmt.Fprintf(os.Stderr, "Collected %d articles\n", len(ev.Records))
		}
	}), cfg.Run.TargetCount)

	report, err := rn.Run(ctx, models.RunRequest{TargetCount: *target})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during test: %v\n", err)
		return 1
	}

	printReport(os.Stdout, report)
	if !report.IsSorted {
		return 1
	}
	return 0
}
