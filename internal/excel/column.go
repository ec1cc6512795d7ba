package excel

import (
	"strings"

	"dosage-management/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// maxColumnIndex bounds the sum so overlong references cannot overflow int.
const maxColumnIndex = 1 << 30

// ColumnIndex converts a spreadsheet column reference ("A", "aa", " BS ")
// to its 1-based index. References come from the column mapping, so any
// malformed input is a configuration error.
func ColumnIndex(letters string) (int, error) {
	ref := strings.ToUpper(strings.TrimSpace(letters))
	if ref == "" {
		return 0, errors.NewConfigError(letters, "empty column reference")
	}

	idx := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			return 0, errors.NewConfigError(letters, "column reference must only contain letters A-Z")
		}
		idx = idx*26 + int(r-'A') + 1
		if idx > maxColumnIndex {
			return 0, errors.NewConfigError(letters, "column reference is too long")
		}
	}
	return idx, nil
}

// ColumnLetters is the inverse of ColumnIndex for sheet columns (up to XFD),
// used for log and error messages.
func ColumnLetters(index int) string {
	name, err := excelize.ColumnNumberToName(index)
	if err != nil {
		return "?"
	}
	return name
}
