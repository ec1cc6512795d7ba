package ingest

import (
	"context"

	"dosage-management/internal/db"
	"dosage-management/internal/excel"
	"dosage-management/internal/schema"
	"dosage-management/internal/table"
	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
)

const supportMessage = "error occurred, please contact support!"

// DailyImporter replaces the content of the fixed daily submission table.
type DailyImporter struct {
	store        db.Store
	materializer *table.Materializer
	tableName    string
	log          zerolog.Logger
}

func NewDailyImporter(store db.Store, materializer *table.Materializer, tableName string, log zerolog.Logger) *DailyImporter {
	return &DailyImporter{
		store:        store,
		materializer: materializer,
		tableName:    tableName,
		log:          log,
	}
}

// Import reads sheet with the configured daily columns, then truncates the
// destination and loads the rows. The cause of any failure is logged and
// the caller only gets a generic ImportError.
func (d *DailyImporter) Import(ctx context.Context, fields []schema.Field, sheet *excel.Sheet) (int64, error) {
	log := d.log.With().Str("sheet", sheet.Name()).Str("table", d.tableName).Logger()

	if len(fields) == 0 {
		err := errors.NewConfigError("DailyDosageColumns", "no daily submission columns configured")
		log.Error().Err(err).Msg("Cannot import daily submission")
		return 0, errors.NewImportError(err, supportMessage)
	}

	t := table.New(fields)
	if err := d.materializer.FillDaily(t, sheet); err != nil {
		log.Error().Err(err).Msg("Failed to read daily submission sheet")
		return 0, errors.NewImportError(err, supportMessage)
	}

	if err := d.store.Truncate(ctx, d.tableName); err != nil {
		log.Error().Err(err).Msg("Failed to truncate daily submission table")
		return 0, errors.NewImportError(err, supportMessage)
	}

	n, err := d.store.BulkLoad(ctx, d.tableName, t)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load daily submission rows")
		return 0, errors.NewImportError(err, supportMessage)
	}

	log.Info().Int64("rows", n).Msg("Daily submission loaded")
	return n, nil
}
