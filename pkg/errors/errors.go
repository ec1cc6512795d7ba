package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWorkbook = errors.New("invalid workbook format")
	ErrConfiguration   = errors.New("invalid column mapping configuration")
	ErrTableExists     = errors.New("destination table already exists")
	ErrRunNotFound     = errors.New("import run not found")
	ErrExportFailed    = errors.New("export failed")
	ErrPoolStopped     = errors.New("worker pool stopped")
)

// ConfigError reports a malformed or missing entry of the column mapping.
type ConfigError struct {
	Key     string
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("configuration error at '%s': %s", e.Key, e.Message)
}

func (e ConfigError) Unwrap() error {
	return ErrConfiguration
}

func NewConfigError(key, format string, args ...interface{}) error {
	return ConfigError{
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	}
}

// CellError locates a value that could not be coerced to its declared column kind.
// Row and Column are 1-based sheet coordinates.
type CellError struct {
	Sheet  string
	Row    int
	Column int
	Value  string
	Target string
	Err    error
}

func (e CellError) Error() string {
	return fmt.Sprintf("there is invalid cell value, please have a check at [%d, %d] in sheet %s (value '%s', target type %s)",
		e.Row, e.Column, e.Sheet, e.Value, e.Target)
}

func (e CellError) Unwrap() error {
	return e.Err
}

type StoreError struct {
	Op            string
	Err           error
	Communication bool
}

func (e StoreError) Error() string {
	if e.Communication {
		return fmt.Sprintf("store communication failure during %s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("store error during %s: %s", e.Op, e.Err.Error())
}

func (e StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error, communication bool) error {
	return StoreError{
		Op:            op,
		Err:           err,
		Communication: communication,
	}
}

// ImportError is what callers of an import see. Error() carries only the
// user-safe message; the cause stays reachable through Unwrap.
type ImportError struct {
	Message string
	Err     error
}

func (e ImportError) Error() string {
	return e.Message
}

func (e ImportError) Unwrap() error {
	return e.Err
}

func NewImportError(err error, message string) error {
	return ImportError{
		Message: message,
		Err:     err,
	}
}

// Is and As are re-exported so callers importing this package under the
// name "errors" keep the standard helpers.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
