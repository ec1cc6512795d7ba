// Package table holds the in-memory typed row set handed to bulk loads.
package table

import (
	"fmt"
	"strings"

	"dosage-management/internal/schema"

	"github.com/shopspring/decimal"
)

// maxDecimal bounds the integer part allowed by decimal(38,10).
var maxDecimal = decimal.New(1, schema.DecimalPrecision-schema.DecimalScale)

// Table is a typed row set. Text cells hold string, decimal cells hold
// decimal.Decimal, empty cells hold nil.
type Table struct {
	fields []schema.Field
	rows   [][]any
	sealed bool
}

// New builds an empty table with one slot per field, in order.
func New(fields []schema.Field) *Table {
	return &Table{fields: append([]schema.Field(nil), fields...)}
}

func (t *Table) Fields() []schema.Field {
	return t.fields
}

func (t *Table) Columns() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

func (t *Table) Rows() [][]any {
	return t.rows
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Seal freezes the table; later appends fail.
func (t *Table) Seal() {
	t.sealed = true
}

func (t *Table) Sealed() bool {
	return t.sealed
}

func (t *Table) Append(row []any) error {
	if t.sealed {
		return fmt.Errorf("table is sealed")
	}
	if len(row) != len(t.fields) {
		return fmt.Errorf("row has %d values, table has %d fields", len(row), len(t.fields))
	}
	t.rows = append(t.rows, row)
	return nil
}

// Coerce converts the raw text of a cell to the Go value of kind. Blank
// text is nil for decimals; text values are kept verbatim.
func Coerce(kind schema.Kind, raw string) (any, error) {
	if kind != schema.KindDecimal {
		return raw, nil
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, err
	}
	if d.Abs().GreaterThanOrEqual(maxDecimal) {
		return nil, fmt.Errorf("value exceeds %s", schema.DecimalType)
	}
	return d.Round(schema.DecimalScale), nil
}
