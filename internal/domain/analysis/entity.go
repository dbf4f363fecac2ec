package analysis

import (
	"strings"
	"time"
)

// RecordID identifier type
type RecordID string

// Outcome enum
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Record is an audit entry for one inference call. It is never used to
// restore session state.
type Record struct {
	ID         RecordID  `json:"id"`
	FileID     string    `json:"file_id"`
	FileName   string    `json:"file_name"`
	MediaType  string    `json:"media_type"`
	Model      string    `json:"model"`
	Outcome    Outcome   `json:"outcome"`
	Summary    string    `json:"summary,omitempty"`
	Result     string    `json:"result,omitempty"` // JSON of the AnalysisResult
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stored returns the record in the shape the audit tables expect. Blank
// identifying columns hold "-" and an empty result holds "{}". A zero
// CreatedAt is set to now.
func (r Record) Stored(now time.Time) Record {
	r.FileID = orDash(r.FileID)
	r.FileName = orDash(r.FileName)
	r.MediaType = orDash(r.MediaType)
	r.Model = orDash(r.Model)
	if strings.TrimSpace(r.Result) == "" {
		r.Result = "{}"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	return r
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
