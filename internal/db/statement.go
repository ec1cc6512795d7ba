package db

import (
	"strings"

	"dosage-management/internal/schema"
)

// CreateTableBuilder renders CREATE TABLE statements with a dynamic column
// list. Identifiers come from the column mapping and header text, never
// from row values, and are quoted by the dialect.
type CreateTableBuilder struct {
	dialect Dialect
	table   string
	columns []schema.Field
}

func NewCreateTable(dialect Dialect, table string) *CreateTableBuilder {
	return &CreateTableBuilder{dialect: dialect, table: table}
}

func (b *CreateTableBuilder) Columns(fields ...schema.Field) *CreateTableBuilder {
	b.columns = append(b.columns, fields...)
	return b
}

func (b *CreateTableBuilder) String() string {
	clauses := make([]string, 0, len(b.columns))
	for _, f := range b.columns {
		clause := b.dialect.Quote(f.Name) + " " + b.dialect.ColumnType(f)
		if f.PrimaryKey {
			clause += " " + b.dialect.Identity()
		}
		clauses = append(clauses, clause)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(b.dialect.Quote(b.table))
	sb.WriteString(" (\n  ")
	sb.WriteString(strings.Join(clauses, ",\n  "))
	sb.WriteString("\n)")
	return sb.String()
}

// InsertStatement renders a positional insert for the given columns using
// '?' placeholders.
func InsertStatement(dialect Dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = dialect.Quote(c)
		marks[i] = "?"
	}
	return "INSERT INTO " + dialect.Quote(table) + " (" + strings.Join(quoted, ", ") +
		") VALUES (" + strings.Join(marks, ", ") + ")"
}
