package worker

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"dosage-management/internal/config"
	"dosage-management/internal/db"
	"dosage-management/internal/model"
	"dosage-management/internal/queue"
	"dosage-management/internal/storage"

	"github.com/rs/zerolog"
)

// WorkbookImporter is satisfied by *ingest.Importer.
type WorkbookImporter interface {
	ImportWorkbook(ctx context.Context, r io.Reader) (*model.ImportResult, error)
}

type IngestionWorker struct {
	cfg        *config.Config
	repo       db.Repository
	storage    storage.Storage
	importer   WorkbookImporter
	consumer   *queue.Consumer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewIngestionWorker(
	cfg *config.Config,
	repo db.Repository,
	storage storage.Storage,
	importer WorkbookImporter,
	redisClient *queue.RedisClient,
	log zerolog.Logger,
) *IngestionWorker {
	return &IngestionWorker{
		cfg:        cfg,
		repo:       repo,
		storage:    storage,
		importer:   importer,
		consumer:   queue.NewConsumer(redisClient, cfg.Redis.ImportQueue, cfg.Redis.DLQSuffix, log),
		workerPool: NewWorkerPool(cfg.Workers.Ingestion.Count, log),
		log:        log,
	}
}

func (w *IngestionWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting ingestion worker")

	w.workerPool.Start(ctx)

	return w.consumer.Consume(ctx, w.handleMessage)
}

func (w *IngestionWorker) Stop() {
	w.log.Info().Msg("Stopping ingestion worker")
	w.workerPool.Stop()
}

func (w *IngestionWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal import job")
		return err
	}

	w.log.Info().Str("run_id", job.RunID).Str("object_key", job.ObjectKey).Msg("Processing import job")

	return w.workerPool.Submit(ctx, func(ctx context.Context) error {
		if err := w.Process(ctx, job); err != nil {
			w.consumer.DeadLetter(ctx, data)
			return err
		}
		return nil
	})
}

// Process runs one queued import and records its outcome on the run.
func (w *IngestionWorker) Process(ctx context.Context, job model.ImportJob) error {
	log := w.log.With().Str("run_id", job.RunID).Logger()

	if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusRunning, "", nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark run as running")
		return err
	}

	log.Debug().Msg("Downloading workbook from S3")
	reader, err := w.storage.Download(ctx, job.ObjectKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download workbook")
		w.fail(ctx, log, job.RunID, "the uploaded workbook could not be retrieved")
		return err
	}
	defer reader.Close()

	result, err := w.importer.ImportWorkbook(ctx, reader)
	if err != nil {
		// ImportError messages are safe to persist as-is.
		w.fail(ctx, log, job.RunID, err.Error())
		return err
	}

	tables := strings.Join(result.TableNames(), ",")
	if err := w.repo.UpdateRunStatus(ctx, job.RunID, model.RunStatusSucceeded, tables, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update run status")
		return err
	}

	log.Info().Str("tables", tables).Int64("daily_rows", result.DailyRows).Msg("Import run succeeded")
	return nil
}

func (w *IngestionWorker) fail(ctx context.Context, log zerolog.Logger, runID, message string) {
	if err := w.repo.UpdateRunStatus(ctx, runID, model.RunStatusFailed, "", &message); err != nil {
		log.Error().Err(err).Msg("Failed to mark run as failed")
	}
}
