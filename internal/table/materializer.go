package table

import (
	"dosage-management/internal/excel"
	"dosage-management/internal/schema"
	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
)

type Materializer struct {
	validator *excel.Validator
	log       zerolog.Logger
}

func NewMaterializer(log zerolog.Logger) *Materializer {
	return &Materializer{
		validator: excel.NewValidator(),
		log:       log,
	}
}

// Build returns an empty table laid out for s: fixed columns as text,
// primary key excluded, then derived columns as decimals.
func (m *Materializer) Build(s *schema.Schema) *Table {
	fields := make([]schema.Field, 0, len(s.Fixed)+len(s.Derived))
	for _, f := range s.Fixed {
		if f.PrimaryKey {
			continue
		}
		f.Kind = schema.KindText
		fields = append(fields, f)
	}
	for _, f := range s.Derived {
		f.Kind = schema.KindDecimal
		fields = append(fields, f)
	}
	return New(fields)
}

// Fill appends sheet rows 2..LastRow positionally and seals the table. The
// first cell that does not coerce aborts the fill with its location.
func (m *Materializer) Fill(t *Table, sheet *excel.Sheet) error {
	if err := m.validator.Validate(sheet, len(t.fields)); err != nil {
		return err
	}

	lastCol := sheet.LastColumn()
	for r := 2; r <= sheet.LastRow(); r++ {
		row := make([]any, len(t.fields))
		for c := 1; c <= lastCol; c++ {
			raw, ok := sheet.Cell(r, c)
			if !ok {
				continue
			}

			field := t.fields[c-1]
			v, err := Coerce(field.Kind, raw)
			if err != nil {
				m.log.Error().
					Err(err).
					Str("sheet", sheet.Name()).
					Int("row", r).
					Int("column", c).
					Str("target", field.Kind.String()).
					Str("value", raw).
					Msg("Invalid cell value")
				return errors.CellError{
					Sheet:  sheet.Name(),
					Row:    r,
					Column: c,
					Value:  raw,
					Target: field.Kind.String(),
					Err:    err,
				}
			}
			row[c-1] = v
		}
		if err := t.Append(row); err != nil {
			return err
		}
	}

	t.Seal()
	return nil
}

// FillDaily reads one value per configured field, ignoring columns beyond
// the configuration. Empty cells stay nil.
func (m *Materializer) FillDaily(t *Table, sheet *excel.Sheet) error {
	for r := 2; r <= sheet.LastRow(); r++ {
		row := make([]any, len(t.fields))
		for j, field := range t.fields {
			raw, ok := sheet.Cell(r, j+1)
			if !ok {
				continue
			}

			v, err := Coerce(field.Kind, raw)
			if err != nil {
				return errors.CellError{
					Sheet:  sheet.Name(),
					Row:    r,
					Column: j + 1,
					Value:  raw,
					Target: field.Kind.String(),
					Err:    err,
				}
			}
			row[j] = v
		}
		if err := t.Append(row); err != nil {
			return err
		}
	}

	t.Seal()
	return nil
}
