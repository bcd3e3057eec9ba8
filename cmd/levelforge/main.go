package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/levelforge/internal/batch"
	"github.com/dunamismax/levelforge/internal/config"
	"github.com/dunamismax/levelforge/internal/id"
	"github.com/dunamismax/levelforge/internal/pipeline"
	"github.com/dunamismax/levelforge/internal/storage"
	"github.com/dunamismax/levelforge/internal/store"
	"github.com/dunamismax/levelforge/internal/telemetry"
	"github.com/dunamismax/levelforge/internal/webhook"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitNoInputs = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.New(os.Stdout, "[levelforge] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		logger.Printf("[ERROR] load config: %v", err)
		return exitFailure
	}
	runID := id.NewRunID()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		Exporter:     cfg.Telemetry.TraceExporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		RunID:        runID,
	}, logger)
	if err != nil {
		logger.Printf("[ERROR] setup tracing: %v", err)
		return exitFailure
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Printf("[ERROR] start image runtime: %v", err)
		return exitFailure
	}
	defer pipeline.Shutdown()

	var emitters []pipeline.Emitter
	if cfg.Storage.Enabled() {
		client, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Printf("[ERROR] storage client: %v", err)
			return exitFailure
		}
		if err := client.EnsureBucket(ctx); err != nil {
			logger.Printf("[ERROR] storage bucket: %v", err)
			return exitFailure
		}
		emitters = append(emitters, pipeline.ObjectStoreEmitter{Storage: client, OutputPrefix: cfg.Storage.Prefix})
		logger.Printf("mirroring assets bucket=%s prefix=%s", client.Bucket(), cfg.Storage.Prefix)
	}

	resizer, err := pipeline.NewResizer(emitters...)
	if err != nil {
		logger.Printf("[ERROR] build resizer: %v", err)
		return exitFailure
	}

	var manifest store.ManifestStore
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresManifestStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Printf("[ERROR] manifest store: %v", err)
			return exitFailure
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Printf("manifest store close error: %v", err)
			}
		}()
		manifest = pg
	}

	notifier := webhook.NewClient(webhook.Config{
		Endpoint:       cfg.Webhook.URL,
		SigningSecret:  cfg.Webhook.Secret,
		Timeout:        10 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
	})

	driver, err := batch.NewDriver(logger, runID, cfg.Batch, resizer, manifest, notifier)
	if err != nil {
		logger.Printf("[ERROR] build driver: %v", err)
		return exitFailure
	}

	summary, runErr := driver.Run(ctx)
	if cfg.Telemetry.MetricsFile != "" {
		if err := driver.WriteMetrics(cfg.Telemetry.MetricsFile); err != nil {
			logger.Printf("metrics write failed path=%s err=%v", cfg.Telemetry.MetricsFile, err)
		}
	}

	code := exitCode(runErr)
	switch code {
	case exitNoInputs:
		logger.Printf("[ERROR] no %s files found in %s", cfg.Batch.Pattern, cfg.Batch.SourceDir)
	case exitFailure:
		logger.Printf("[ERROR] batch aborted after %d levels: %v", summary.Levels, runErr)
	default:
		logger.Printf("[SUCCESS] converted %d puzzle images run_id=%s", summary.Levels, runID)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, batch.ErrNoInputs):
		return exitNoInputs
	default:
		return exitFailure
	}
}
