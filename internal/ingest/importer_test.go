package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"dosage-management/internal/db"
	"dosage-management/internal/mapping"
	"dosage-management/internal/table"
	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testMapping = `{
  "InputColumns": {
    "ID": { "Type": "int", "PrimaryKey": "true" },
    "Market": { "Type": "nvarchar(200)" },
    "Product": { "Type": "nvarchar(200)" }
  },
  "MTH": {
    "VALUEStart": "C", "VALUEEnd": "D",
    "PTDStart": "E", "PTDEnd": "E",
    "VOLUMEStart": "F", "VOLUMEEnd": "F",
    "DateLengh": 7
  },
  "MAT": {
    "VALUEStart": "C", "VALUEEnd": "D",
    "PTDStart": "E", "PTDEnd": "E",
    "VOLUMEStart": "F", "VOLUMEEnd": "F",
    "DateLength": 4
  },
  "DailyDosageColumns": {
    "Hospital": { "CLRType": "System.String" },
    "Dosage": { "CLRType": "System.Decimal" }
  }
}`

var (
	mthHeader = []interface{}{"Market", "Product", "11/2023", "12/2023", "12/2023", "12/2023"}
	matHeader = []interface{}{"Market", "Product", "2022", "2023", "2023", "2023"}
	fixedDay  = time.Date(2024, time.January, 2, 9, 30, 0, 0, time.UTC)
)

type call struct {
	op   string
	arg  string
	rows int
}

type fakeStore struct {
	calls   []call
	execErr error
	loaded  map[string]*table.Table
}

func newFakeStore() *fakeStore {
	return &fakeStore{loaded: make(map[string]*table.Table)}
}

func (f *fakeStore) Dialect() db.Dialect {
	d, _ := db.DialectFor("mysql")
	return d
}

func (f *fakeStore) Exec(_ context.Context, statement string) error {
	f.calls = append(f.calls, call{op: "exec", arg: statement})
	return f.execErr
}

func (f *fakeStore) BulkLoad(_ context.Context, name string, t *table.Table) (int64, error) {
	f.calls = append(f.calls, call{op: "load", arg: name, rows: t.Len()})
	f.loaded[name] = t
	return int64(t.Len()), nil
}

func (f *fakeStore) Truncate(_ context.Context, name string) error {
	f.calls = append(f.calls, call{op: "truncate", arg: name})
	return nil
}

func (f *fakeStore) CallProcedure(_ context.Context, name string) error {
	f.calls = append(f.calls, call{op: "call", arg: name})
	return nil
}

func (f *fakeStore) ops() []string {
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		arg := c.arg
		if c.op == "exec" {
			arg = strings.SplitN(arg, " (", 2)[0]
		}
		ops[i] = c.op + " " + arg
	}
	return ops
}

type sheetData struct {
	name string
	rows [][]interface{}
}

func workbook(t *testing.T, sheets ...sheetData) io.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func newTestImporter(t *testing.T, store db.Store, doc string) *Importer {
	t.Helper()
	cfg := testImportConfig()
	return NewImporter(cfg, store, zerolog.Nop(),
		WithClock(func() time.Time { return fixedDay }),
		WithMappingSource(func() (*mapping.Mapping, error) { return mapping.Parse([]byte(doc)) }),
	)
}

func TestImportWorkbook(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	wb := workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{
			mthHeader,
			{"North", "Aspirin", 1.5, 2, 3.25, 10},
			{"South", "Aspirin", "", 4, 5, 20},
		}},
		sheetData{name: "Notes", rows: [][]interface{}{{"free text"}}},
		sheetData{name: "DailyDosage", rows: [][]interface{}{
			{"Hospital", "Dosage"},
			{"H1", 2.5},
		}},
		sheetData{name: "mat", rows: [][]interface{}{
			matHeader,
			{"North", "Aspirin", 100, 200, 300, 400},
		}},
	)

	result, err := importer.ImportWorkbook(context.Background(), wb)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"call usp_cleanBizTable",
		"exec CREATE TABLE `BIZ_MTH0102`",
		"load BIZ_MTH0102",
		"truncate DailyDosage",
		"load DailyDosage",
		"exec CREATE TABLE `BIZ_MAT0102`",
		"load BIZ_MAT0102",
		"call usp_initBizData",
	}, store.ops())

	assert.Equal(t, []string{"BIZ_MTH0102", "BIZ_MAT0102"}, result.TableNames())
	assert.Equal(t, int64(2), result.Tables[0].Rows)
	assert.Equal(t, int64(1), result.DailyRows)
	assert.Equal(t, []string{"Notes"}, result.Skipped)

	create := store.calls[1].arg
	assert.Contains(t, create, "`ID` int AUTO_INCREMENT PRIMARY KEY")
	assert.Contains(t, create, "`VAL_11_2023` decimal(38,10)")
	assert.Contains(t, create, "`PTD_12_2023` decimal(38,10)")
	assert.Contains(t, create, "`VOL_12_2023` decimal(38,10)")

	mth := store.loaded["BIZ_MTH0102"]
	assert.Equal(t, []string{"Market", "Product", "VAL_11_2023", "VAL_12_2023", "PTD_12_2023", "VOL_12_2023"}, mth.Columns())
	assert.Nil(t, mth.Rows()[1][2])

	mat := store.loaded["BIZ_MAT0102"]
	assert.Equal(t, []string{"Market", "Product", "VAL_2022", "VAL_2023", "PTD_2023", "VOL_2023"}, mat.Columns())
}

func TestImportWorkbookWithOnlyUnrecognisedSheets(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	result, err := importer.ImportWorkbook(context.Background(),
		workbook(t, sheetData{name: "Summary", rows: [][]interface{}{{"x"}}}))
	require.NoError(t, err)

	assert.Equal(t, []string{"call usp_initBizData"}, store.ops())
	assert.Empty(t, result.Tables)
	assert.Equal(t, []string{"Summary"}, result.Skipped)
}

func TestImportWorkbookCleansUpOnce(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	_, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MAT", rows: [][]interface{}{matHeader, {"North", "Aspirin", 1, 2, 3, 4}}},
		sheetData{name: "MTH", rows: [][]interface{}{mthHeader, {"North", "Aspirin", 1, 2, 3, 4}}},
	))
	require.NoError(t, err)

	cleanups := 0
	for _, c := range store.calls {
		if c.op == "call" && c.arg == "usp_cleanBizTable" {
			cleanups++
		}
	}
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, "call usp_cleanBizTable", store.ops()[0])
}

func TestImportWorkbookSkipsTableForHeaderOnlySheet(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	result, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{mthHeader}},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"call usp_cleanBizTable", "call usp_initBizData"}, store.ops())
	assert.Empty(t, result.Tables)
}

func TestImportWorkbookInvalidCell(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	_, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{
			mthHeader,
			{"North", "Aspirin", 1, 2, 3, 4},
			{"South", "Aspirin", 1, "n/a", 3, 4},
		}},
	))
	require.Error(t, err)

	var importErr errors.ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, "there is invalid cell value, please have a check at [3, 4] in sheet MTH", importErr.Message)

	var cellErr errors.CellError
	require.True(t, errors.As(err, &cellErr))

	for _, c := range store.calls {
		assert.NotEqual(t, "load", c.op)
		assert.NotEqual(t, "exec", c.op)
	}
	assert.NotContains(t, store.ops(), "call usp_initBizData")
}

func TestImportWorkbookKeepsEarlierSheetsOnFailure(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	_, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{mthHeader, {"North", "Aspirin", 1, 2, 3, 4}}},
		sheetData{name: "MAT", rows: [][]interface{}{matHeader, {"North", "Aspirin", 1, 2, "x", 4}}},
	))
	require.Error(t, err)
	assert.Equal(t, "there is invalid cell value, please have a check at [2, 5] in sheet MAT", err.Error())

	// the MTH table stays created and loaded; nothing is dropped or truncated
	assert.Equal(t, []string{
		"call usp_cleanBizTable",
		"exec CREATE TABLE `BIZ_MTH0102`",
		"load BIZ_MTH0102",
	}, store.ops())
	assert.Equal(t, 1, store.loaded["BIZ_MTH0102"].Len())
}

func TestImportWorkbookMissingPeriodSpec(t *testing.T) {
	store := newFakeStore()
	doc := `{"InputColumns": {"Market": {"Type": "nvarchar(200)"}}}`
	importer := newTestImporter(t, store, doc)

	_, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{mthHeader}},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Empty(t, store.calls)
}

func TestImportWorkbookTableAlreadyExists(t *testing.T) {
	store := newFakeStore()
	store.execErr = errors.NewStoreError("execute statement",
		fmt.Errorf("%w: Error 1050", errors.ErrTableExists), false)
	importer := newTestImporter(t, store, testMapping)

	_, err := importer.ImportWorkbook(context.Background(), workbook(t,
		sheetData{name: "MTH", rows: [][]interface{}{mthHeader, {"North", "Aspirin", 1, 2, 3, 4}}},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTableExists))
	assert.Contains(t, err.Error(), "already imported today")
}

func TestImportWorkbookRejectsInvalidWorkbook(t *testing.T) {
	store := newFakeStore()
	importer := newTestImporter(t, store, testMapping)

	_, err := importer.ImportWorkbook(context.Background(), strings.NewReader("not a workbook"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidWorkbook))
	assert.Empty(t, store.calls)
}

func TestDestinationTableName(t *testing.T) {
	d := NewDestination(newFakeStore(), "BIZ_", func() time.Time { return fixedDay }, zerolog.Nop())
	assert.Equal(t, "BIZ_MTH0102", d.TableName("MTH"))
	assert.Equal(t, "BIZ_MAT0102", d.TableName("MAT"))
}
