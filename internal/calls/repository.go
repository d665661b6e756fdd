package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-insights/pkg/utils"
)

var ErrNotFound = errors.New("calls: not found")

// Repository stores call records in Postgres.
//
// Upserts key on the provider-assigned id, so repeated delivery of the same
// call converges to a single row. Reads are plain scans; aggregation happens
// in the metrics engine.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// EnsureSchema creates the calls table and its indexes. Safe to call on every boot.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS calls (
  id                    TEXT PRIMARY KEY,
  company_id            TEXT NOT NULL DEFAULT '',
  company_name          TEXT NOT NULL DEFAULT '',
  source_name           TEXT NOT NULL DEFAULT '',
  tracking_number       TEXT NOT NULL DEFAULT '',
  customer_phone_number TEXT NOT NULL DEFAULT '',
  agent_name            TEXT NOT NULL DEFAULT '',
  call_type             TEXT NOT NULL DEFAULT 'inbound',
  call_status           TEXT NOT NULL DEFAULT 'missed',
  duration_seconds      INTEGER NOT NULL DEFAULT 0,
  ring_time_seconds     INTEGER NOT NULL DEFAULT 0,
  hold_time_seconds     INTEGER NOT NULL DEFAULT 0,
  tags                  TEXT NOT NULL DEFAULT '',
  recording_url         TEXT NOT NULL DEFAULT '',
  transcript            TEXT NOT NULL DEFAULT '',
  summary               TEXT NOT NULL DEFAULT '',
  started_at            TIMESTAMPTZ NOT NULL,
  created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls (started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_agent_name ON calls (agent_name)`,
	} {
		if _, err := r.db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

const upsertQuery = `
INSERT INTO calls (
  id, company_id, company_name, source_name, tracking_number, customer_phone_number,
  agent_name, call_type, call_status, duration_seconds, ring_time_seconds,
  hold_time_seconds, tags, recording_url, transcript, summary, started_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (id) DO UPDATE SET
  company_id            = EXCLUDED.company_id,
  company_name          = EXCLUDED.company_name,
  source_name           = EXCLUDED.source_name,
  tracking_number       = EXCLUDED.tracking_number,
  customer_phone_number = EXCLUDED.customer_phone_number,
  agent_name            = EXCLUDED.agent_name,
  call_type             = EXCLUDED.call_type,
  call_status           = EXCLUDED.call_status,
  duration_seconds      = CASE
                            WHEN EXCLUDED.duration_seconds > 0 THEN EXCLUDED.duration_seconds
                            ELSE calls.duration_seconds
                          END,
  ring_time_seconds     = EXCLUDED.ring_time_seconds,
  hold_time_seconds     = EXCLUDED.hold_time_seconds,
  tags                  = EXCLUDED.tags,
  recording_url         = EXCLUDED.recording_url,
  transcript            = EXCLUDED.transcript,
  summary               = EXCLUDED.summary,
  started_at            = EXCLUDED.started_at
`

// Upsert inserts or updates a call row keyed by id.
//
// A stored positive duration is never clobbered by a zero incoming one;
// partial provider events sometimes arrive before the final duration.
func (r *Repository) Upsert(ctx context.Context, c CallRecord) error {
	_, err := r.db.ExecContext(ctx, upsertQuery, upsertArgs(c)...)
	return err
}

// UpsertBatch upserts rows inside one transaction and returns the row count.
func (r *Repository) UpsertBatch(ctx context.Context, records []CallRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n := 0
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, c := range records {
			if _, err := tx.ExecContext(ctx, upsertQuery, upsertArgs(c)...); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func upsertArgs(c CallRecord) []any {
	startedAt := c.StartedAt
	if startedAt.IsZero() {
		startedAt = c.CreatedAt
	}
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return []any{
		c.ID, c.CompanyID, c.CompanyName, c.SourceName, c.TrackingNumber, c.CustomerPhoneNumber,
		c.AgentName, c.Type, c.Status, c.DurationSeconds, c.RingTimeSeconds,
		c.HoldTimeSeconds, c.Tags, c.RecordingURL, c.Transcript, c.Summary, startedAt, createdAt,
	}
}

const selectColumns = `
id, company_id, company_name, source_name, tracking_number, customer_phone_number,
agent_name, call_type, call_status, duration_seconds, ring_time_seconds,
hold_time_seconds, tags, recording_url, transcript, summary, started_at, created_at
`

// ListRange returns calls whose started_at falls in [from, to).
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	q := `SELECT ` + selectColumns + ` FROM calls WHERE started_at >= $1 AND started_at < $2 ORDER BY started_at`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

// Get fetches one call by id.
func (r *Repository) Get(ctx context.Context, id string) (CallRecord, error) {
	q := `SELECT ` + selectColumns + ` FROM calls WHERE id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return c, err
}

// StoreStats summarizes the table for diagnostics.
type StoreStats struct {
	Rows    int    `json:"rows"`
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}

func (r *Repository) Stats(ctx context.Context) (StoreStats, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(to_char(MIN(started_at), 'YYYY-MM-DD'), ''),
       COALESCE(to_char(MAX(started_at), 'YYYY-MM-DD'), '')
FROM calls`
	var s StoreStats
	if err := r.db.QueryRowContext(ctx, q).Scan(&s.Rows, &s.MinDate, &s.MaxDate); err != nil {
		return StoreStats{}, err
	}
	return s, nil
}

// DailyCount is one day of call volume for diagnostics.
type DailyCount struct {
	Day        string  `json:"day"`
	Calls      int     `json:"calls"`
	AvgSeconds float64 `json:"avg_secs"`
}

func (r *Repository) DailyCounts(ctx context.Context, limit int) ([]DailyCount, error) {
	const q = `
SELECT to_char(started_at, 'YYYY-MM-DD') AS day,
       COUNT(*),
       ROUND(AVG(duration_seconds)::numeric, 2)
FROM calls
GROUP BY day
ORDER BY day DESC
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DailyCount, 0, limit)
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Calls, &d.AvgSeconds); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FirstSeenByCustomer maps each known customer number to the started_at of
// its earliest call, across the whole table. Backs the new-vs-returning split.
func (r *Repository) FirstSeenByCustomer(ctx context.Context) (map[string]time.Time, error) {
	const q = `
SELECT customer_phone_number, MIN(started_at)
FROM calls
WHERE customer_phone_number <> ''
GROUP BY customer_phone_number`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var phone string
		var first time.Time
		if err := rows.Scan(&phone, &first); err != nil {
			return nil, err
		}
		out[phone] = first
	}
	return out, rows.Err()
}

// ListMissingAgent returns rows with tags but no agent name, for repair jobs.
func (r *Repository) ListMissingAgent(ctx context.Context) ([]CallRecord, error) {
	q := `SELECT ` + selectColumns + ` FROM calls WHERE agent_name = '' AND tags <> ''`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

// SetAgentName backfills an agent name on one row.
func (r *Repository) SetAgentName(ctx context.Context, id, agentName string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE calls SET agent_name = $1 WHERE id = $2`, agentName, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var c CallRecord
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.CompanyName, &c.SourceName, &c.TrackingNumber, &c.CustomerPhoneNumber,
		&c.AgentName, &c.Type, &c.Status, &c.DurationSeconds, &c.RingTimeSeconds,
		&c.HoldTimeSeconds, &c.Tags, &c.RecordingURL, &c.Transcript, &c.Summary, &c.StartedAt, &c.CreatedAt,
	)
	return c, err
}

func scanCalls(rows *sql.Rows) ([]CallRecord, error) {
	var out []CallRecord
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
