package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"dosage-management/internal/config"
	"dosage-management/internal/model"
	"dosage-management/pkg/errors"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	markets  []string
	listErr  error
	queryErr error
	queried  [][]interface{}
}

func (f *fakeSource) ListMarkets(context.Context, string) ([]string, error) {
	return f.markets, f.listErr
}

func (f *fakeSource) QueryResults(_ context.Context, _ string, args ...interface{}) ([]string, [][]interface{}, error) {
	if f.queryErr != nil {
		return nil, nil, f.queryErr
	}
	f.queried = append(f.queried, args)
	market := args[0].(string)
	return []string{"Market", "Product", "Amount"}, [][]interface{}{
		{market, "Aspirin", "1.5"},
		{market, "Ibuprofen", nil},
	}, nil
}

var exportTime = time.Date(2024, time.June, 30, 14, 5, 0, 0, time.UTC)

func newTestExporter(t *testing.T, source ResultSource) (*Exporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "temp_excel")
	cfg := config.ExportConfig{TempDir: dir, MarketQuery: "markets", ResultQuery: "results"}
	return NewExporter(cfg, source, zerolog.Nop(), WithClock(func() time.Time { return exportTime })), dir
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestExportAllMarkets(t *testing.T) {
	source := &fakeSource{markets: []string{"North", "South/East"}}
	exporter, dir := newTestExporter(t, source)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, "stale.xlsx")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	from := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	bundle, err := exporter.Export(context.Background(), model.ExportRequest{DataType: "MTH", Market: "all", CalculatedFrom: from})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "myResult_0630.zip"), bundle)
	assert.NoFileExists(t, stale)
	assert.Equal(t, []string{"North_1405.xlsx", "South_East_1405.xlsx"}, zipEntries(t, bundle))
	assert.Equal(t, []interface{}{"North", "MTH", from}, source.queried[0])

	f, err := excelize.OpenFile(filepath.Join(dir, "North_1405.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("North")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Market", "Product", "Amount"}, rows[0])
	assert.Equal(t, []string{"North", "Aspirin", "1.5"}, rows[1])
	assert.Equal(t, []string{"North", "Ibuprofen"}, rows[2])
}

func TestExportSingleMarket(t *testing.T) {
	source := &fakeSource{markets: []string{"North", "South"}}
	exporter, _ := newTestExporter(t, source)

	bundle, err := exporter.Export(context.Background(), model.ExportRequest{DataType: "MAT", Market: "South"})
	require.NoError(t, err)

	assert.Equal(t, []string{"South_1405.xlsx"}, zipEntries(t, bundle))
	require.Len(t, source.queried, 1)
}

func TestExportFailuresAreOpaque(t *testing.T) {
	cases := map[string]*fakeSource{
		"list":  {listErr: fmt.Errorf("connection refused")},
		"query": {markets: []string{"North"}, queryErr: fmt.Errorf("syntax error near SELECT")},
	}
	for name, source := range cases {
		exporter, _ := newTestExporter(t, source)

		_, err := exporter.Export(context.Background(), model.ExportRequest{DataType: "MTH", Market: "all"})
		require.Error(t, err, name)
		assert.Equal(t, errors.ErrExportFailed, err, name)
	}
}

type memoryStorage struct {
	keys []string
}

func (m *memoryStorage) Download(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (m *memoryStorage) Delete(context.Context, string) error                    { return nil }
func (m *memoryStorage) Exists(context.Context, string) (bool, error)            { return false, nil }

func (m *memoryStorage) Upload(_ context.Context, key string, data io.Reader) error {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	m.keys = append(m.keys, key)
	return nil
}

func TestExportUploadsBundle(t *testing.T) {
	store := &memoryStorage{}
	dir := filepath.Join(t.TempDir(), "temp_excel")
	cfg := config.ExportConfig{TempDir: dir, Upload: true}
	exporter := NewExporter(cfg, &fakeSource{markets: []string{"North"}}, zerolog.Nop(),
		WithClock(func() time.Time { return exportTime }), WithStorage(store))

	_, err := exporter.Export(context.Background(), model.ExportRequest{DataType: "MTH"})
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/2024/06/30/myResult_0630.zip"}, store.keys)
}
