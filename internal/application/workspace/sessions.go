package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/sketch2sys/internal/application"
)

type session struct {
	orch     *Orchestrator
	lastSeen time.Time
}

// Sessions keeps one Orchestrator per browser session. Nothing is persisted;
// sessions idle for longer than ttl are reset and forgotten.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*session

	newFn func() *Orchestrator
	ttl   time.Duration
	clock application.Clock
	log   zerolog.Logger
}

func NewSessions(newFn func() *Orchestrator, ttl time.Duration, log zerolog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{
		items: make(map[string]*session),
		newFn: newFn,
		ttl:   ttl,
		clock: application.SystemClock{},
		log:   log.With().Str("component", "sessions").Logger(),
	}
}

// WithClock swaps the clock, used by tests
func (s *Sessions) WithClock(c application.Clock) *Sessions {
	s.clock = c
	return s
}

// NewID returns a fresh session id
func (s *Sessions) NewID() string {
	return uuid.New().String()
}

// Get returns the orchestrator for id when it exists
func (s *Sessions) Get(id string) (*Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	it.lastSeen = s.clock.Now()
	return it.orch, true
}

// GetOrCreate returns the orchestrator for id, creating an idle one if needed
func (s *Sessions) GetOrCreate(id string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if it, ok := s.items[id]; ok {
		it.lastSeen = now
		return it.orch
	}
	o := s.newFn()
	s.items[id] = &session{orch: o, lastSeen: now}
	return o
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep resets and drops sessions idle past the ttl, returning how many went.
func (s *Sessions) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	var expired []*Orchestrator

	s.mu.Lock()
	for id, it := range s.items {
		if now.Sub(it.lastSeen) > s.ttl {
			expired = append(expired, it.orch)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, o := range expired {
		o.Reset(ctx)
	}
	if len(expired) > 0 {
		s.log.Info().Int("expired", len(expired)).Msg("sessions swept")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done
func (s *Sessions) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Close resets every session, releasing previews, and waits for in-flight tasks.
func (s *Sessions) Close(ctx context.Context) {
	s.mu.Lock()
	all := make([]*Orchestrator, 0, len(s.items))
	for id, it := range s.items {
		all = append(all, it.orch)
		delete(s.items, id)
	}
	s.mu.Unlock()

	for _, o := range all {
		o.Reset(ctx)
	}
	done := make(chan struct{})
	go func() {
		for _, o := range all {
			o.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("shutdown before in-flight analyses finished")
	}
}
