package db

import (
	"fmt"
	"regexp"
	"strings"

	"dosage-management/internal/schema"
)

// Dialect renders the statements that differ between stores.
type Dialect interface {
	Name() string
	Quote(ident string) string
	// ColumnType is the destination type of f, translated where the
	// declared type is foreign to the store.
	ColumnType(f schema.Field) string
	// Identity is appended to the primary key column definition.
	Identity() string
	Truncate(table string) string
	Call(procedure string) string
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func declaredType(f schema.Field, text string) string {
	if f.SQLType != "" {
		return f.SQLType
	}
	if f.Kind == schema.KindDecimal {
		return schema.DecimalType
	}
	return text
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) ColumnType(f schema.Field) string {
	return declaredType(f, "varchar(4000)")
}

func (mysqlDialect) Identity() string { return "AUTO_INCREMENT PRIMARY KEY" }

func (d mysqlDialect) Truncate(table string) string {
	return "TRUNCATE TABLE " + d.Quote(table)
}

func (d mysqlDialect) Call(procedure string) string {
	return "CALL " + d.Quote(procedure) + "()"
}

var postgresTypes = strings.NewReplacer(
	"nvarchar", "varchar",
	"NVARCHAR", "VARCHAR",
	"nchar", "char",
	"NCHAR", "CHAR",
	"datetime", "timestamp",
	"DATETIME", "TIMESTAMP",
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgresDialect) ColumnType(f schema.Field) string {
	return postgresTypes.Replace(declaredType(f, "text"))
}

func (postgresDialect) Identity() string { return "GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY" }

func (d postgresDialect) Truncate(table string) string {
	return "TRUNCATE TABLE " + d.Quote(table)
}

// Call leaves plain procedure names bare so Postgres folds them the same way
// it did when the procedure was created without quotes.
func (d postgresDialect) Call(procedure string) string {
	return "CALL " + d.objectName(procedure) + "()"
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (d postgresDialect) objectName(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		if !plainIdent.MatchString(part) {
			parts[i] = d.Quote(part)
		}
	}
	return strings.Join(parts, ".")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ColumnType keeps the declared type as affinity hint. Only an INTEGER
// column may carry AUTOINCREMENT, and derived decimals are kept as TEXT
// since NUMERIC affinity would round them to 15 significant digits.
func (sqliteDialect) ColumnType(f schema.Field) string {
	if f.PrimaryKey {
		return "INTEGER"
	}
	if f.Kind == schema.KindDecimal && f.SQLType == schema.DecimalType {
		return "TEXT"
	}
	return declaredType(f, "TEXT")
}

func (sqliteDialect) Identity() string { return "PRIMARY KEY AUTOINCREMENT" }

func (d sqliteDialect) Truncate(table string) string {
	return "DELETE FROM " + d.Quote(table)
}

// Call is unused: sqlite procedures are configured scripts.
func (sqliteDialect) Call(procedure string) string {
	return ""
}
