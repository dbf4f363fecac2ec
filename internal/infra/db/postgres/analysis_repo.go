package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/bryanwahyu/sketch2sys/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// EnsureSchema creates the audit table when missing
func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS sketch_analyses (
  id          TEXT PRIMARY KEY,
  file_id     TEXT NOT NULL,
  file_name   TEXT NOT NULL,
  media_type  TEXT NOT NULL,
  model       TEXT NOT NULL,
  outcome     TEXT NOT NULL,
  summary     TEXT,
  result_json JSONB NOT NULL,
  error_text  TEXT,
  duration_ms BIGINT NOT NULL DEFAULT 0,
  created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sketch_analyses_created ON sketch_analyses (created_at DESC);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save inserts or updates an audit record
func (r *AnalysisRepository) Save(ctx context.Context, a *analysis.Record) error {
	const q = `
INSERT INTO sketch_analyses
  (id, file_id, file_name, media_type, model, outcome, summary, result_json, error_text, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  outcome=EXCLUDED.outcome,
  summary=EXCLUDED.summary,
  result_json=EXCLUDED.result_json,
  error_text=EXCLUDED.error_text,
  duration_ms=EXCLUDED.duration_ms;
`
	row := a.Stored(time.Now().UTC())
	_, err := r.db.ExecContext(ctx, q,
		string(row.ID),
		row.FileID,
		row.FileName,
		row.MediaType,
		row.Model,
		string(row.Outcome),
		row.Summary,
		row.Result,
		row.Error,
		row.DurationMS,
		row.CreatedAt,
	)
	return err
}

// Paginate returns a page of audit records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, page, pageSize int) ([]*analysis.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, file_id, file_name, media_type, model, outcome,
       COALESCE(summary, ''), result_json::text, COALESCE(error_text, ''), duration_ms, created_at
FROM sketch_analyses
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*analysis.Record
	for rows.Next() {
		var a analysis.Record
		var outcome string
		if err := rows.Scan(&a.ID, &a.FileID, &a.FileName, &a.MediaType, &a.Model, &outcome,
			&a.Summary, &a.Result, &a.Error, &a.DurationMS, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Outcome = analysis.Outcome(outcome)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Check implements middleware.HealthChecker
func (r *AnalysisRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
