package ingest

import (
	"context"
	"time"

	"dosage-management/internal/db"
	"dosage-management/internal/schema"

	"github.com/rs/zerolog"
)

// Destination creates the per-run period tables.
type Destination struct {
	store  db.Store
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

func NewDestination(store db.Store, prefix string, now func() time.Time, log zerolog.Logger) *Destination {
	if now == nil {
		now = time.Now
	}
	return &Destination{
		store:  store,
		prefix: prefix,
		now:    now,
		log:    log,
	}
}

// TableName is prefix + period + MMDD of the current day. Reruns on the
// same day produce the same name.
func (d *Destination) TableName(period string) string {
	return d.prefix + period + d.now().Format("0102")
}

// Statement renders the create-table statement for s without running it.
func (d *Destination) Statement(name string, s *schema.Schema) string {
	return db.NewCreateTable(d.store.Dialect(), name).Columns(s.Columns()...).String()
}

// Create runs the create-table statement for s and returns the table name.
func (d *Destination) Create(ctx context.Context, s *schema.Schema) (string, error) {
	name := d.TableName(s.Period)
	if err := d.store.Exec(ctx, d.Statement(name, s)); err != nil {
		d.log.Error().Err(err).Str("table", name).Msg("Failed to create destination table")
		return "", err
	}

	d.log.Info().Str("table", name).Int("columns", len(s.Columns())).Msg("Destination table created")
	return name, nil
}
