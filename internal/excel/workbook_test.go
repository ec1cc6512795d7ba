package excel

import (
	"bytes"
	"strings"
	"testing"

	"dosage-management/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestOpenReadsSheetsInOrder(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "MTH"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow("MTH", "A1", &[]interface{}{"Market", "Product", "12/31/2023"}))
	require.NoError(t, f.SetSheetRow("MTH", "A2", &[]interface{}{"M1", "P1", 12.5}))
	require.NoError(t, f.SetSheetRow("MTH", "A3", &[]interface{}{"M2", "", 7}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	wb, err := Open(&buf)
	require.NoError(t, err)
	require.Len(t, wb.Sheets(), 2)

	sheet := wb.Sheets()[0]
	assert.Equal(t, "MTH", sheet.Name())
	assert.Equal(t, "12/31/2023", sheet.HeaderText(3))
	assert.Equal(t, 3, sheet.LastRow())
	assert.Equal(t, 3, sheet.LastColumn())

	v, ok := sheet.Cell(2, 3)
	assert.True(t, ok)
	assert.Equal(t, "12.5", v)

	_, ok = sheet.Cell(3, 2)
	assert.False(t, ok)

	empty := wb.Sheets()[1]
	assert.Equal(t, 0, empty.LastRow())
}

func TestOpenRejectsNonWorkbook(t *testing.T) {
	_, err := Open(strings.NewReader("plainly not a zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidWorkbook))
}

func TestValidatorRejectsWideSheets(t *testing.T) {
	v := NewValidator()
	sheet := NewSheet("MTH", []string{"a", "b"}, [][]string{{"1", "2", "3"}})

	err := v.Validate(sheet, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidWorkbook))

	assert.NoError(t, v.Validate(sheet, 3))
	assert.Error(t, v.Validate(NewSheet("MAT", nil, nil), 3))
}
