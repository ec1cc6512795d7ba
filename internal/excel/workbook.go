package excel

import (
	"fmt"
	"io"

	"dosage-management/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet is a fully read worksheet. Row 1 is the header, addressed through
// HeaderText; data cells are addressed 1-based through Cell.
type Sheet struct {
	name    string
	header  []string
	rows    [][]string
	lastCol int
}

// NewSheet builds a sheet from already extracted values. rows holds the data
// rows only (sheet row 2 onward).
func NewSheet(name string, header []string, rows [][]string) *Sheet {
	lastCol := len(header)
	for _, row := range rows {
		if len(row) > lastCol {
			lastCol = len(row)
		}
	}
	return &Sheet{
		name:    name,
		header:  header,
		rows:    rows,
		lastCol: lastCol,
	}
}

func (s *Sheet) Name() string {
	return s.name
}

// HeaderText returns the displayed text of header cell (1, col).
func (s *Sheet) HeaderText(col int) string {
	if col < 1 || col > len(s.header) {
		return ""
	}
	return s.header[col-1]
}

// Cell returns the raw text of cell (row, col) and whether it holds a value.
// Rows start at 2 since row 1 is the header.
func (s *Sheet) Cell(row, col int) (string, bool) {
	r := row - 2
	if r < 0 || r >= len(s.rows) || col < 1 || col > len(s.rows[r]) {
		return "", false
	}
	v := s.rows[r][col-1]
	return v, v != ""
}

// LastRow is the last populated sheet row, 1 when the sheet only has a header.
func (s *Sheet) LastRow() int {
	if len(s.header) == 0 && len(s.rows) == 0 {
		return 0
	}
	return len(s.rows) + 1
}

// LastColumn is the widest populated column over all rows.
func (s *Sheet) LastColumn() int {
	return s.lastCol
}

type Workbook struct {
	sheets []*Sheet
}

// Open reads every worksheet of an xlsx stream. Header cells keep their
// number format so date headers read as displayed; data cells are read raw.
func Open(r io.Reader) (*Workbook, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidWorkbook, err)
	}
	defer file.Close()

	names := file.GetSheetList()
	if len(names) == 0 {
		return nil, errors.ErrInvalidWorkbook
	}

	wb := &Workbook{}
	for _, name := range names {
		sheet, err := readSheet(file, name)
		if err != nil {
			return nil, err
		}
		wb.sheets = append(wb.sheets, sheet)
	}
	return wb, nil
}

func readSheet(file *excelize.File, name string) (*Sheet, error) {
	formatted, err := file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get rows of sheet %s: %v", errors.ErrInvalidWorkbook, name, err)
	}
	if len(formatted) == 0 {
		return NewSheet(name, nil, nil), nil
	}

	raw, err := file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get raw rows of sheet %s: %v", errors.ErrInvalidWorkbook, name, err)
	}

	var data [][]string
	if len(raw) > 1 {
		data = raw[1:]
	}
	return NewSheet(name, formatted[0], data), nil
}

func (w *Workbook) Sheets() []*Sheet {
	return w.sheets
}
