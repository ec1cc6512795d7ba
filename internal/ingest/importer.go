package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/db"
	"dosage-management/internal/excel"
	"dosage-management/internal/mapping"
	"dosage-management/internal/model"
	"dosage-management/internal/schema"
	"dosage-management/internal/table"
	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
)

// MappingSource yields the column mapping of one run. It is called once per
// import so edits to the mapping file apply to the next run.
type MappingSource func() (*mapping.Mapping, error)

func FileMapping(path string) MappingSource {
	return func() (*mapping.Mapping, error) {
		return mapping.Load(path)
	}
}

// Importer drives one workbook through the ingestion pipeline. Sheets are
// processed strictly in workbook order; nothing is rolled back on failure.
type Importer struct {
	cfg          config.ImportConfig
	mappings     MappingSource
	store        db.Store
	materializer *table.Materializer
	destination  *Destination
	daily        *DailyImporter
	now          func() time.Time
	log          zerolog.Logger
}

type Option func(*Importer)

// WithClock replaces time.Now, which names destination tables.
func WithClock(now func() time.Time) Option {
	return func(i *Importer) {
		i.now = now
	}
}

func WithMappingSource(source MappingSource) Option {
	return func(i *Importer) {
		i.mappings = source
	}
}

func NewImporter(cfg config.ImportConfig, store db.Store, log zerolog.Logger, opts ...Option) *Importer {
	i := &Importer{
		cfg:      cfg,
		mappings: FileMapping(cfg.MappingPath),
		store:    store,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(i)
	}

	i.materializer = table.NewMaterializer(log)
	i.destination = NewDestination(store, cfg.TablePrefix, i.now, log)
	i.daily = NewDailyImporter(store, i.materializer, cfg.DailyTable, log)
	return i
}

// ImportWorkbook loads every recognised sheet of the workbook in r and runs
// the post-load procedure. Returned errors are ImportError values whose
// message is safe to show to the submitter.
func (i *Importer) ImportWorkbook(ctx context.Context, r io.Reader) (*model.ImportResult, error) {
	result := &model.ImportResult{StartedAt: i.now()}

	cols, err := i.mappings()
	if err != nil {
		i.log.Error().Err(err).Msg("Failed to load column mapping")
		return nil, errors.NewImportError(err, fmt.Sprintf("column mapping configuration is invalid: %v", err))
	}

	wb, err := excel.Open(r)
	if err != nil {
		i.log.Error().Err(err).Msg("Please check whether the file is a valid Excel workbook")
		return nil, errors.NewImportError(err, "the uploaded file is not a valid Excel workbook")
	}

	// Range specs are checked up front so a configuration gap aborts the
	// run before anything reaches the store.
	for _, sheet := range wb.Sheets() {
		if kind := excel.Classify(sheet.Name()); kind.IsPeriod() {
			if _, err := cols.Period(kind.String()); err != nil {
				i.log.Error().Err(err).Str("sheet", sheet.Name()).Msg("Missing period range specification")
				return nil, errors.NewImportError(err, fmt.Sprintf("column mapping configuration is invalid: %v", err))
			}
		}
	}

	resolver := schema.NewResolver(cols, i.log)
	cleaned := false

	for _, sheet := range wb.Sheets() {
		kind := excel.Classify(sheet.Name())
		log := i.log.With().Str("sheet", sheet.Name()).Str("kind", kind.String()).Logger()

		switch {
		case kind == excel.SheetDaily:
			n, err := i.daily.Import(ctx, cols.DailyFields(), sheet)
			if err != nil {
				return nil, err
			}
			result.DailyRows += n

		case kind.IsPeriod():
			if !cleaned {
				if err := i.store.CallProcedure(ctx, i.cfg.CleanupProcedure); err != nil {
					log.Error().Err(err).Str("procedure", i.cfg.CleanupProcedure).Msg("Failed to clear temporary data")
					return nil, storeFailure(err)
				}
				cleaned = true
			}

			load, err := i.importPeriod(ctx, resolver, kind.String(), sheet, log)
			if err != nil {
				return nil, err
			}
			if load != nil {
				result.Tables = append(result.Tables, *load)
			}

		default:
			log.Debug().Msg("Skipping unrecognised sheet")
			result.Skipped = append(result.Skipped, sheet.Name())
		}
	}

	if err := i.store.CallProcedure(ctx, i.cfg.PostLoadProcedure); err != nil {
		i.log.Error().Err(err).Str("procedure", i.cfg.PostLoadProcedure).Msg("Post-load procedure failed")
		return nil, storeFailure(err)
	}

	result.FinishedAt = i.now()
	i.log.Info().
		Int("tables", len(result.Tables)).
		Int64("daily_rows", result.DailyRows).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Workbook imported")

	return result, nil
}

// importPeriod resolves, materializes, creates and loads one period sheet.
// A sheet without data rows creates no table and yields nil.
func (i *Importer) importPeriod(ctx context.Context, resolver *schema.Resolver, period string, sheet *excel.Sheet, log zerolog.Logger) (*model.TableLoad, error) {
	s, err := resolver.Resolve(period, sheet)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve sheet schema")
		return nil, errors.NewImportError(err, fmt.Sprintf("sheet %s does not match the column mapping: %v", sheet.Name(), err))
	}

	t := i.materializer.Build(s)
	if err := i.materializer.Fill(t, sheet); err != nil {
		var cellErr errors.CellError
		if errors.As(err, &cellErr) {
			return nil, errors.NewImportError(err, fmt.Sprintf("there is invalid cell value, please have a check at [%d, %d] in sheet %s",
				cellErr.Row, cellErr.Column, cellErr.Sheet))
		}
		log.Error().Err(err).Msg("Failed to read sheet")
		return nil, errors.NewImportError(err, fmt.Sprintf("sheet %s could not be read: %v", sheet.Name(), err))
	}

	if t.Len() == 0 {
		log.Info().Msg("Sheet has no data rows, no table created")
		return nil, nil
	}

	name, err := i.destination.Create(ctx, s)
	if err != nil {
		return nil, storeFailure(err)
	}

	n, err := i.store.BulkLoad(ctx, name, t)
	if err != nil {
		log.Error().Err(err).Str("table", name).Msg("Bulk load failed")
		return nil, storeFailure(err)
	}

	log.Info().Str("table", name).Int64("rows", n).Str("schema", s.String()).Msg("Sheet loaded")
	return &model.TableLoad{Sheet: sheet.Name(), Table: name, Rows: n}, nil
}

func storeFailure(err error) error {
	if errors.Is(err, errors.ErrTableExists) {
		return errors.NewImportError(err, "destination table already exists, the period was already imported today")
	}
	return errors.NewImportError(err, "error occurred while communicating with the database, please contact support!")
}
