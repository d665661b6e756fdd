package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo stores audit events in Postgres, insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the audit_events table. Safe to call on every boot.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_events (
  id         TEXT PRIMARY KEY,
  type       TEXT NOT NULL,
  operator   TEXT NOT NULL DEFAULT '',
  ip_address TEXT NOT NULL DEFAULT '',
  message    TEXT NOT NULL DEFAULT '',
  metadata   TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events (created_at)`)
	return err
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, type, operator, ip_address, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, string(e.Type), e.Operator, e.IPAddress, e.Message, e.Metadata, e.CreatedAt)
	return err
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, type, operator, ip_address, message, metadata, created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Operator, &e.IPAddress, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
