package schema

import "fmt"

// Kind is the declared storage kind of a column, fixed when the column
// mapping is parsed.
type Kind int

const (
	KindText Kind = iota
	KindDecimal
)

// DecimalType is the storage type of every derived date column. Destination
// consumers depend on this exact precision and scale.
const (
	DecimalPrecision = 38
	DecimalScale     = 10
	DecimalType      = "decimal(38,10)"
)

func (k Kind) String() string {
	switch k {
	case KindDecimal:
		return "decimal"
	default:
		return "text"
	}
}

type Field struct {
	Name string
	Kind Kind
	// SQLType is the declared destination type; empty means the dialect
	// default for Kind.
	SQLType    string
	PrimaryKey bool
	// Origin is the source column caption when it differs from Name.
	Origin string
}

// Range is an inclusive 1-based column span tagged with the prefix of the
// columns it derives.
type Range struct {
	Tag   string
	Start int
	End   int
}

func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// PeriodSpec describes the date-indexed layout of one period type.
type PeriodSpec struct {
	Code           string
	Value          Range
	PTD            Range
	Volume         Range
	DatePartLength int
}

// Ranges returns the spans in derivation order: value, period-to-date, volume.
func (p PeriodSpec) Ranges() []Range {
	return []Range{p.Value, p.PTD, p.Volume}
}

// Schema is the resolved layout of one period sheet.
type Schema struct {
	Period  string
	Fixed   []Field
	Derived []Field
}

// Columns lists every destination column in create-table order, primary key
// included.
func (s *Schema) Columns() []Field {
	cols := make([]Field, 0, len(s.Fixed)+len(s.Derived))
	cols = append(cols, s.Fixed...)
	cols = append(cols, s.Derived...)
	return cols
}

// LoadFields lists the columns carried by the in-memory table: the primary
// key is store-managed and therefore left out.
func (s *Schema) LoadFields() []Field {
	return LoadFields(s.Columns())
}

func LoadFields(cols []Field) []Field {
	fields := make([]Field, 0, len(cols))
	for _, f := range cols {
		if f.PrimaryKey {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func (s *Schema) String() string {
	return fmt.Sprintf("%s: %d fixed, %d derived", s.Period, len(s.Fixed), len(s.Derived))
}
