package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/model"
	"dosage-management/internal/storage"
	"dosage-management/pkg/errors"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// AllMarkets selects every market returned by the market query.
const AllMarkets = "all"

// ResultSource is the read side of the store used by exports.
type ResultSource interface {
	ListMarkets(ctx context.Context, query string) ([]string, error)
	QueryResults(ctx context.Context, query string, args ...interface{}) ([]string, [][]interface{}, error)
}

type Exporter struct {
	cfg     config.ExportConfig
	source  ResultSource
	storage storage.Storage
	now     func() time.Time
	log     zerolog.Logger
}

type Option func(*Exporter)

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// WithStorage enables uploading finished bundles when export.upload is set.
func WithStorage(s storage.Storage) Option {
	return func(e *Exporter) {
		e.storage = s
	}
}

func NewExporter(cfg config.ExportConfig, source ResultSource, log zerolog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		cfg:    cfg,
		source: source,
		now:    time.Now,
		log:    log.With().Str("component", "export").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes one workbook per selected market and bundles them into a zip
// under the temp directory, returning the bundle path. The temp directory is
// emptied first. Failures are logged and reported as ErrExportFailed only.
func (e *Exporter) Export(ctx context.Context, req model.ExportRequest) (string, error) {
	log := e.log.With().Str("data_type", req.DataType).Str("market", req.Market).Logger()

	if err := e.cleanTempDir(); err != nil {
		log.Error().Err(err).Str("dir", e.cfg.TempDir).Msg("Failed to clean export directory")
		return "", errors.ErrExportFailed
	}

	markets, err := e.source.ListMarkets(ctx, e.cfg.MarketQuery)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list markets")
		return "", errors.ErrExportFailed
	}

	now := e.now()
	var files []string
	for _, market := range markets {
		if !selected(req.Market, market) {
			continue
		}

		file, err := e.writeMarket(ctx, market, req, now)
		if err != nil {
			log.Error().Err(err).Str("export_market", market).Msg("Failed to export market")
			return "", errors.ErrExportFailed
		}
		files = append(files, file)
	}

	bundle := filepath.Join(e.cfg.TempDir, fmt.Sprintf("myResult_%s.zip", now.Format("0102")))
	if err := zipFiles(bundle, files); err != nil {
		log.Error().Err(err).Msg("Failed to create export bundle")
		return "", errors.ErrExportFailed
	}

	if e.cfg.Upload && e.storage != nil {
		if err := e.upload(ctx, bundle, now); err != nil {
			log.Error().Err(err).Msg("Failed to upload export bundle")
			return "", errors.ErrExportFailed
		}
	}

	log.Info().Int("markets", len(files)).Str("bundle", bundle).Msg("Export completed")
	return bundle, nil
}

func selected(want, market string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, AllMarkets) || want == market
}

func (e *Exporter) writeMarket(ctx context.Context, market string, req model.ExportRequest, now time.Time) (string, error) {
	columns, rows, err := e.source.QueryResults(ctx, e.cfg.ResultQuery, market, req.DataType, req.CalculatedFrom)
	if err != nil {
		return "", fmt.Errorf("failed to query results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(market)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to open stream writer: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush sheet: %w", err)
	}

	path := filepath.Join(e.cfg.TempDir, fmt.Sprintf("%s_%s.xlsx", fileSafe(market), now.Format("1504")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.log.Debug().Str("export_market", market).Int("rows", len(rows)).Str("file", path).Msg("Market exported")
	return path, nil
}

func (e *Exporter) upload(ctx context.Context, bundle string, now time.Time) error {
	f, err := os.Open(bundle)
	if err != nil {
		return err
	}
	defer f.Close()

	return e.storage.Upload(ctx, storage.ExportKey(now, bundle), f)
}

func (e *Exporter) cleanTempDir() error {
	if err := os.MkdirAll(e.cfg.TempDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(e.cfg.TempDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(e.cfg.TempDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func zipFiles(target string, files []string) error {
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addFile(zw, file); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addFile(zw *zip.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(file))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// sheetName keeps a market name within Excel's sheet-name rules.
func sheetName(market string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, market)
	if name == "" {
		name = "Result"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func fileSafe(market string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, market)
}
