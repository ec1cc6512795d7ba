package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportErrorHidesCause(t *testing.T) {
	cause := NewStoreError("bulk load into BIZ_MTH0102", fmt.Errorf("dial tcp 10.0.0.5:3306: i/o timeout"), true)
	err := NewImportError(cause, "error occurred while communicating with the database, please contact support!")

	assert.Equal(t, "error occurred while communicating with the database, please contact support!", err.Error())

	var storeErr StoreError
	assert.True(t, As(err, &storeErr))
	assert.True(t, storeErr.Communication)
	assert.Contains(t, storeErr.Error(), "communication failure")
}

func TestConfigErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("sheet MTH: %w", NewConfigError("MTH.VALUEStart", "missing"))

	assert.True(t, Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "'MTH.VALUEStart'")
}

func TestCellErrorLocation(t *testing.T) {
	err := CellError{Sheet: "MAT", Row: 5, Column: 12, Value: "x", Target: "decimal", Err: fmt.Errorf("bad")}

	assert.Contains(t, err.Error(), "[5, 12] in sheet MAT")
	assert.EqualError(t, err.Unwrap(), "bad")
}
