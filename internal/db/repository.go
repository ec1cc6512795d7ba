package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dosage-management/internal/model"
	"dosage-management/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	EnsureSchema(ctx context.Context) error
	CreateRun(ctx context.Context, run *model.ImportRun) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, tables string, errorMessage *string) error
	GetRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListMarkets(ctx context.Context, query string) ([]string, error)
	QueryResults(ctx context.Context, query string, args ...interface{}) ([]string, [][]interface{}, error)
}

type repository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ids are generated client side so the table is portable across drivers.
const createRunsTable = `CREATE TABLE IF NOT EXISTS import_runs (
  id VARCHAR(36) NOT NULL PRIMARY KEY,
  object_key VARCHAR(512) NOT NULL,
  file_name VARCHAR(255) NOT NULL,
  status VARCHAR(16) NOT NULL,
  error_message TEXT NULL,
  table_names TEXT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`

func (r *repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createRunsTable)
	return err
}

func (r *repository) CreateRun(ctx context.Context, run *model.ImportRun) error {
	now := r.now()
	run.CreatedAt, run.UpdatedAt = now, now

	query := r.db.Rebind(`INSERT INTO import_runs (id, object_key, file_name, status, error_message, table_names, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, run.ID, run.ObjectKey, run.FileName, run.Status,
		run.ErrorMessage, run.Tables, run.CreatedAt, run.UpdatedAt)
	return err
}

func (r *repository) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, tables string, errorMessage *string) error {
	query := r.db.Rebind(`UPDATE import_runs SET status = ?, table_names = ?, error_message = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, status, tables, errorMessage, r.now(), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrRunNotFound
	}
	return nil
}

func (r *repository) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	query := r.db.Rebind(`SELECT id, object_key, file_name, status, error_message, COALESCE(table_names, '') AS table_names, created_at, updated_at
			  FROM import_runs WHERE id = ?`)

	var run model.ImportRun
	if err := r.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *repository) ListMarkets(ctx context.Context, query string) ([]string, error) {
	var markets []string
	if err := r.db.SelectContext(ctx, &markets, query); err != nil {
		return nil, err
	}
	return markets, nil
}

// QueryResults runs an arbitrary report query and returns its column names
// and rows. Placeholders are written as '?' and rebound for the driver.
func (r *repository) QueryResults(ctx context.Context, query string, args ...interface{}) ([]string, [][]interface{}, error) {
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var result [][]interface{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}

	return columns, result, rows.Err()
}
