package ai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/sketch2sys/internal/application"
	"github.com/bryanwahyu/sketch2sys/internal/domain/analysis"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// Service runs one inference call per Analyze and records the outcome when
// an audit repository is configured. It never retries and never caches.
type Service struct {
	client  sketch.Analyzer
	records analysis.Repository
	clock   application.Clock
	model   string
	log     zerolog.Logger
}

func NewService(client sketch.Analyzer, records analysis.Repository, model string, log zerolog.Logger) *Service {
	return &Service{
		client:  client,
		records: records,
		clock:   application.SystemClock{},
		model:   model,
		log:     log.With().Str("component", "inference").Logger(),
	}
}

// WithClock swaps the clock, used by tests
func (s *Service) WithClock(c application.Clock) *Service {
	s.clock = c
	return s
}

// Analyze implements sketch.Analyzer
func (s *Service) Analyze(ctx context.Context, file *sketch.File) (sketch.AnalysisResult, error) {
	start := s.clock.Now()
	s.log.Info().Str("file_id", string(file.ID)).Str("media_type", file.MediaType).Int64("size", file.Size).Msg("analysis started")

	res, err := s.client.Analyze(ctx, file)
	elapsed := s.clock.Now().Sub(start)

	if err != nil {
		s.log.Error().Err(err).Str("file_id", string(file.ID)).Dur("duration", elapsed).Msg("analysis failed")
	} else {
		s.log.Info().Str("file_id", string(file.ID)).Int("stack_items", len(res.TechStack)).Dur("duration", elapsed).Msg("analysis finished")
	}
	s.record(file, res, err, start, elapsed)
	return res, err
}

// ListAnalyses returns a page of audit records
func (s *Service) ListAnalyses(ctx context.Context, page, pageSize int) (analysis.Page, error) {
	if s.records == nil {
		return analysis.Page{}, ErrAuditDisabled
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	list, err := s.records.Paginate(ctx, page, pageSize)
	if err != nil {
		return analysis.Page{}, err
	}
	return analysis.Page{Data: list, Page: page, PageSize: pageSize}, nil
}

func (s *Service) record(file *sketch.File, res sketch.AnalysisResult, err error, start time.Time, elapsed time.Duration) {
	if s.records == nil {
		return
	}
	rec := &analysis.Record{
		ID:         analysis.RecordID(uuid.New().String()),
		FileID:     string(file.ID),
		FileName:   file.Name,
		MediaType:  file.MediaType,
		Model:      s.model,
		Outcome:    analysis.OutcomeSuccess,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  start,
	}
	if err != nil {
		rec.Outcome = analysis.OutcomeError
		rec.Error = err.Error()
	} else {
		rec.Summary = res.Summary
		if b, mErr := json.Marshal(res); mErr == nil {
			rec.Result = string(b)
		}
	}

	// audit writes must not depend on the caller's context
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sErr := s.records.Save(ctx, rec); sErr != nil {
		s.log.Warn().Err(sErr).Str("record_id", string(rec.ID)).Msg("audit record not saved")
	}
}
