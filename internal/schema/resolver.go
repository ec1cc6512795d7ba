package schema

import (
	"fmt"
	"strings"

	"dosage-management/internal/excel"
	"dosage-management/pkg/errors"

	"github.com/rs/zerolog"
)

const (
	TagValue  = "VAL"
	TagPTD    = "PTD"
	TagVolume = "VOL"
)

var separators = strings.NewReplacer("/", "_", "-", "_", ".", "_", " ", "_")

// PeriodSource is the part of the column mapping the resolver reads.
type PeriodSource interface {
	Period(code string) (PeriodSpec, error)
	InputFields() []Field
}

type Resolver struct {
	source PeriodSource
	log    zerolog.Logger
}

func NewResolver(source PeriodSource, log zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		log:    log,
	}
}

// Resolve combines the configured input columns with the date columns
// derived from the header row of sheet.
func (r *Resolver) Resolve(period string, sheet *excel.Sheet) (*Schema, error) {
	spec, err := r.source.Period(period)
	if err != nil {
		return nil, err
	}

	fixed := r.source.InputFields()
	derived, err := DeriveColumns(spec, sheet.HeaderText)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet.Name(), err)
	}

	loaded := len(LoadFields(fixed))
	if spec.Value.Start != loaded+1 {
		r.log.Warn().
			Str("sheet", sheet.Name()).
			Str("value_start", excel.ColumnLetters(spec.Value.Start)).
			Int("fixed_columns", loaded).
			Msg("Value range does not start right after the fixed columns")
	}

	r.log.Debug().
		Str("sheet", sheet.Name()).
		Int("fixed", len(fixed)).
		Int("derived", len(derived)).
		Msg("Schema resolved")

	return &Schema{
		Period:  spec.Code,
		Fixed:   fixed,
		Derived: derived,
	}, nil
}

// DeriveColumns names one decimal column per header cell of each range of
// spec, value range first, each range left to right.
func DeriveColumns(spec PeriodSpec, header func(col int) string) ([]Field, error) {
	var fields []Field
	seen := make(map[string]int)

	for _, rng := range spec.Ranges() {
		for col := rng.Start; col <= rng.End; col++ {
			text := strings.TrimSpace(header(col))
			if text == "" {
				return nil, errors.NewConfigError(spec.Code+"."+rng.Tag,
					"header cell %s1 is empty", excel.ColumnLetters(col))
			}

			name := DerivedName(rng.Tag, text, spec.DatePartLength)
			if prev, ok := seen[name]; ok {
				return nil, errors.NewConfigError(spec.Code+"."+rng.Tag,
					"header cells %s1 and %s1 both derive column %s",
					excel.ColumnLetters(prev), excel.ColumnLetters(col), name)
			}
			seen[name] = col

			fields = append(fields, Field{
				Name:    name,
				Kind:    KindDecimal,
				SQLType: DecimalType,
				Origin:  text,
			})
		}
	}

	return fields, nil
}

// DerivedName builds "<tag>_<suffix>" from the trailing length characters
// of the header text, separators replaced by underscores. A length beyond
// the text keeps the whole text.
func DerivedName(tag, headerText string, length int) string {
	runes := []rune(headerText)
	if length < len(runes) {
		runes = runes[len(runes)-length:]
	}
	return tag + "_" + separators.Replace(string(runes))
}
