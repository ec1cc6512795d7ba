package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dosage-management/internal/config"
	"dosage-management/internal/db"
	"dosage-management/internal/export"
	"dosage-management/internal/logger"
	"dosage-management/internal/storage"
	"dosage-management/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("version", cfg.App.Version).Msg("Starting export worker")

	// Initialize database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	repo := db.NewRepository(database)

	var opts []export.Option
	if cfg.Export.Upload {
		s3Storage, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
		opts = append(opts, export.WithStorage(s3Storage))
	}

	exporter := export.NewExporter(cfg.Export, repo, log, opts...)
	exportWorker := worker.NewExportWorker(cfg.Workers.Export, exporter, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := exportWorker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("Export worker failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down export worker...")

	cancel()
	<-done
	exportWorker.Stop()

	log.Info().Msg("Export worker exited")
}
