package worker

import (
	"context"
	"fmt"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/model"

	"github.com/rs/zerolog"
)

// BundleExporter is satisfied by *export.Exporter.
type BundleExporter interface {
	Export(ctx context.Context, req model.ExportRequest) (string, error)
}

type ExportWorker struct {
	cfg      config.ExportWorkerConfig
	exporter BundleExporter
	timer    *time.Timer
	now      func() time.Time
	log      zerolog.Logger
}

func NewExportWorker(cfg config.ExportWorkerConfig, exporter BundleExporter, log zerolog.Logger) *ExportWorker {
	// Start only resets the timer so Stop can run from another goroutine.
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	return &ExportWorker{
		cfg:      cfg,
		exporter: exporter,
		timer:    timer,
		now:      time.Now,
		log:      log,
	}
}

func (w *ExportWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting export worker")

	nextRun, err := w.nextRunTime()
	if err != nil {
		return err
	}
	w.log.Info().Time("next_run", nextRun).Msg("Scheduled next export")

	if w.cfg.RunOnStart {
		w.log.Info().Msg("Running initial export on startup")
		if err := w.runExport(ctx); err != nil {
			w.log.Error().Err(err).Msg("Initial export failed")
		}
	}

	w.timer.Reset(nextRun.Sub(w.now()))

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Export worker context cancelled")
			return ctx.Err()
		case <-w.timer.C:
			w.log.Info().Msg("Starting scheduled export")
			if err := w.runExport(ctx); err != nil {
				w.log.Error().Err(err).Msg("Scheduled export failed")
			}

			nextRun, _ = w.nextRunTime()
			w.log.Info().Time("next_run", nextRun).Msg("Scheduled next export")
			w.timer.Reset(nextRun.Sub(w.now()))
		}
	}
}

func (w *ExportWorker) Stop() {
	w.log.Info().Msg("Stopping export worker")
	w.timer.Stop()
}

// nextRunTime returns the next occurrence of the configured wall-clock time,
// today if it is still ahead, otherwise tomorrow.
func (w *ExportWorker) nextRunTime() (time.Time, error) {
	at, err := time.Parse("15:04", w.cfg.RunAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid export run_at %q: %w", w.cfg.RunAt, err)
	}

	now := w.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

func (w *ExportWorker) runExport(ctx context.Context) error {
	startTime := w.now()
	req := model.ExportRequest{
		DataType:       w.cfg.DataType,
		Market:         w.cfg.Market,
		CalculatedFrom: startTime.Add(-w.cfg.Lookback),
	}

	bundle, err := w.exporter.Export(ctx, req)
	if err != nil {
		return err
	}

	w.log.Info().
		Dur("duration", w.now().Sub(startTime)).
		Str("bundle", bundle).
		Msg("Export completed")
	return nil
}
