package mysql

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
  id          VARCHAR(64)  NOT NULL PRIMARY KEY,
  file_id     VARCHAR(64)  NOT NULL,
  file_name   VARCHAR(255) NOT NULL,
  media_type  VARCHAR(128) NOT NULL,
  model       VARCHAR(128) NOT NULL,
  outcome     VARCHAR(16)  NOT NULL,
  summary     TEXT         NULL,
  result_json JSON         NOT NULL,
  error_text  TEXT         NULL,
  duration_ms BIGINT       NOT NULL DEFAULT 0,
  created_at  DATETIME(3)  NOT NULL,
  KEY idx_sketch_analyses_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save inserts an audit record
func (r *AnalysisRepository) Save(ctx context.Context, a *analysis.Record) error {
	const q = `
INSERT INTO sketch_analyses
  (id, file_id, file_name, media_type, model, outcome, summary, result_json, error_text, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  outcome=VALUES(outcome), summary=VALUES(summary), result_json=VALUES(result_json),
  error_text=VALUES(error_text), duration_ms=VALUES(duration_ms);
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
       COALESCE(summary, ''), result_json, COALESCE(error_text, ''), duration_ms, created_at
FROM sketch_analyses
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
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
