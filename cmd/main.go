package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/conductr/internal/handoff"
	"github.com/desertthunder/conductr/internal/repositories"
	"github.com/desertthunder/conductr/internal/services"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	shared.SetLogLevel(logger, os.Getenv("CONDUCTR_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("CONDUCTR_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	retry := services.NewRetryPolicy(
		config.Retry.MaxAttempts,
		time.Duration(config.Retry.BaseDelayMS)*time.Millisecond,
		time.Duration(config.Retry.MaxDelayMS)*time.Millisecond,
	)

	opts := RunnerOpts{Config: config, ConfigPath: configPath, Logger: logger}

	if svc, err := services.NewSpotifyService(config.Credentials.Spotify, services.WithRetryPolicy(retry)); err == nil {
		opts.Catalog = svc
		opts.Account = svc
	} else {
		logger.Debug("spotify disabled", "error", err)
	}

	if config.Credentials.LLM.APIKey != "" {
		opts.LLM = services.NewLLMClient(config.Credentials.LLM, services.WithLLMRetryPolicy(retry))
	}

	if db, err := shared.OpenDatabase(config.Database); err == nil {
		defer db.Close()
		ttl := time.Duration(config.Ranking.CacheTTLDays) * 24 * time.Hour
		opts.Cache = repositories.NewClassificationRepository(db, ttl)
	} else {
		logger.Warn("classification cache disabled", "path", config.Database.Path, "error", err)
	}

	store := handoff.Open(ctx, config.Handoff, logger)
	defer store.Close()
	opts.Handoff = store

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "conductr",
		Usage:    "Find complete recordings of a classical work and assemble them into a Spotify playlist",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
