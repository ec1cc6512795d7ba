package db

import (
	"context"
	"fmt"

	"dosage-management/internal/config"
	"dosage-management/internal/table"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Store is the destination relational store. Every call blocks until the
// store answers; errors are StoreError values.
type Store interface {
	Dialect() Dialect
	Exec(ctx context.Context, statement string) error
	BulkLoad(ctx context.Context, tableName string, t *table.Table) (int64, error)
	Truncate(ctx context.Context, tableName string) error
	CallProcedure(ctx context.Context, name string) error
}

type bulkLoader func(ctx context.Context, db *sqlx.DB, dialect Dialect, tableName string, t *table.Table) (int64, error)

type sqlStore struct {
	db         *sqlx.DB
	dialect    Dialect
	load       bulkLoader
	procedures map[string]string
	log        zerolog.Logger
}

func NewStore(database *sqlx.DB, cfg *config.Config, log zerolog.Logger) (Store, error) {
	dialect, err := DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	s := &sqlStore{
		db:         database,
		dialect:    dialect,
		procedures: cfg.Database.Procedures,
		log:        log.With().Str("store", dialect.Name()).Logger(),
	}
	switch dialect.Name() {
	case "mysql":
		s.load = loadDataInfile
	case "postgres":
		s.load = copyFrom
	default:
		s.load = insertBatch
	}
	return s, nil
}

func (s *sqlStore) Dialect() Dialect {
	return s.dialect
}

func (s *sqlStore) Exec(ctx context.Context, statement string) error {
	s.log.Debug().Str("statement", statement).Msg("Executing statement")
	if _, err := s.db.ExecContext(ctx, statement); err != nil {
		return classify("execute statement", err)
	}
	return nil
}

func (s *sqlStore) BulkLoad(ctx context.Context, tableName string, t *table.Table) (int64, error) {
	if t.Len() == 0 {
		return 0, nil
	}

	n, err := s.load(ctx, s.db, s.dialect, tableName, t)
	if err != nil {
		return n, classify("bulk load into "+tableName, err)
	}

	s.log.Debug().Str("table", tableName).Int64("rows", n).Msg("Bulk load completed")
	return n, nil
}

func (s *sqlStore) Truncate(ctx context.Context, tableName string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Truncate(tableName)); err != nil {
		return classify("truncate "+tableName, err)
	}
	return nil
}

func (s *sqlStore) CallProcedure(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	if s.dialect.Name() == "sqlite" {
		script, ok := s.procedures[name]
		if !ok {
			s.log.Debug().Str("procedure", name).Msg("No script configured for procedure, skipping")
			return nil
		}
		if _, err := s.db.ExecContext(ctx, script); err != nil {
			return classify(fmt.Sprintf("procedure %s", name), err)
		}
		return nil
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.Call(name)); err != nil {
		return classify(fmt.Sprintf("procedure %s", name), err)
	}
	return nil
}
