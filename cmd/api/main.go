// Package main is the entry point for the linkdrain ops gateway.
//
// The gateway is a plain HTTP server for local development and operations:
// it exposes job creation and job inspection over the chi router, wired to
// the same controller the Job Controller Lambda uses. In production the
// Lambda entrypoints are the deployment units; this binary exists so the
// whole pipeline can run against LocalStack.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"

	"linkdrain/internal/api"
	"linkdrain/internal/clock"
	"linkdrain/internal/config"
	"linkdrain/internal/controller"
	"linkdrain/internal/db"
	"linkdrain/internal/queue"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("linkdrain gateway starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			o.UsePathStyle = true
		}
	})
	ebClient := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("initializing registry pool: %w", err)
	}
	defer pool.Close()

	jobs := db.NewJobRepository(pool)
	store := queue.NewStore(s3Client, cfg.AWS.JobsBucket)

	srv := &api.Server{
		Controller: &controller.Controller{
			Queues:   store,
			Clock:    clock.NewRuleClock(ebClient, cfg.AWS.DrainTargetArn, cfg.AWS.DrainTargetRole, logger),
			Jobs:     jobs,
			Fetcher:  &controller.HTTPSourceFetcher{Client: http.DefaultClient},
			Validate: validator.New(),
			Log:      logger,
		},
		Jobs:      jobs,
		Artifacts: store,
		Log:       logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

// newLogger builds the JSON logger at the configured level. An unknown level
// string falls back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
