package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"dosage-management/internal/table"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Tab separated rows with backslash escapes and \N for NULL. Both MySQL
// LOAD DATA and PostgreSQL COPY text format read this encoding, and both
// parse each field into the destination column type server-side.
var tsvEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
)

func encodeTSV(t *table.Table) io.Reader {
	var buf bytes.Buffer
	for _, row := range t.Rows() {
		for i, v := range row {
			if i > 0 {
				buf.WriteByte('\t')
			}
			buf.WriteString(tsvField(v))
		}
		buf.WriteByte('\n')
	}
	return &buf
}

func tsvField(v any) string {
	switch val := v.(type) {
	case nil:
		return `\N`
	case decimal.Decimal:
		return val.String()
	case string:
		return tsvEscaper.Replace(val)
	default:
		return tsvEscaper.Replace(fmt.Sprint(val))
	}
}

func quotedColumns(dialect Dialect, t *table.Table) string {
	cols := t.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = dialect.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

// loadDataInfile streams the table through a registered reader handler, so
// no temporary file is written. The server must allow local_infile.
func loadDataInfile(ctx context.Context, db *sqlx.DB, dialect Dialect, tableName string, t *table.Table) (int64, error) {
	handler := "dosage-" + uuid.NewString()
	data := encodeTSV(t)
	mysql.RegisterReaderHandler(handler, func() io.Reader { return data })
	defer mysql.DeregisterReaderHandler(handler)

	stmt := fmt.Sprintf(`LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s CHARACTER SET utf8mb4 `+
		`FIELDS TERMINATED BY '\t' ESCAPED BY '\\' LINES TERMINATED BY '\n' (%s)`,
		handler, dialect.Quote(tableName), quotedColumns(dialect, t))

	res, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// copyFrom runs COPY FROM STDIN on a pooled pgx connection.
func copyFrom(ctx context.Context, db *sqlx.DB, dialect Dialect, tableName string, t *table.Table) (int64, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	stmt := fmt.Sprintf("COPY %s (%s) FROM STDIN", dialect.Quote(tableName), quotedColumns(dialect, t))

	var n int64
	err = conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		tag, err := pc.Conn().PgConn().CopyFrom(ctx, encodeTSV(t), stmt)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

// insertBatch is the sqlite path: one prepared insert inside a single
// transaction. Decimals are bound as text to keep all ten decimal places.
func insertBatch(ctx context.Context, db *sqlx.DB, dialect Dialect, tableName string, t *table.Table) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, InsertStatement(dialect, tableName, t.Columns()))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	args := make([]any, len(t.Fields()))
	for _, row := range t.Rows() {
		for i, v := range row {
			if d, ok := v.(decimal.Decimal); ok {
				args[i] = d.String()
				continue
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, err
		}
		n++
	}

	return n, tx.Commit()
}
