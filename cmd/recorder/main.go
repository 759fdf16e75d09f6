package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"live-recorder/internal/cli"
	"live-recorder/internal/platform/config"
	"live-recorder/internal/platform/logger"
	"live-recorder/internal/platform/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = config.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	secrets, err := config.LoadSecrets(cfg.SecretsFile)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}

	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second signal falls through to the default handler and kills the process
		<-ctx.Done()
		stop()
	}()

	deps := &cli.Dependencies{
		Config:  cfg,
		Secrets: secrets,
		Log:     log,
		Metrics: metrics.New(),
	}
	return cli.NewRootCmd(deps).ExecuteContext(ctx)
}
