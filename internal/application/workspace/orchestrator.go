package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appdiagram "github.com/bryanwahyu/sketch2sys/internal/application/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/application/stack"
	domdiagram "github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

const defaultAnalyzeTimeout = 2 * time.Minute

// Metrics receives lifecycle events, nil means none
type Metrics interface {
	AnalysisStarted()
	AnalysisFinished(err error)
	StaleDiscarded()
}

// Orchestrator owns the lifecycle of one browsing session:
// idle -> analyzing -> success | error, with retry and reset.
//
// Every launched task is tagged with the generation current at launch time.
// Select, Retry and Reset bump the generation, so results that arrive for a
// superseded file, or after a reset, are dropped instead of applied.
// In-flight calls are never cancelled.
type Orchestrator struct {
	analyzer sketch.Analyzer
	previews sketch.PreviewStore
	view     *appdiagram.View
	metrics  Metrics
	timeout  time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	status  Status
	file    *sketch.File
	preview *sketch.Preview
	result  *sketch.AnalysisResult
	diagram *domdiagram.Diagram
	errMsg  string

	tasks sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithMetrics(m Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// New builds an idle orchestrator. previews may be nil (no preview).
func New(analyzer sketch.Analyzer, previews sketch.PreviewStore, renderer *appdiagram.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer: analyzer,
		previews: previews,
		view:     appdiagram.NewView(renderer),
		timeout:  defaultAnalyzeTimeout,
		log:      zerolog.Nop(),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HasFile reports whether a sketch is loaded; the upload surface is disabled then.
func (o *Orchestrator) HasFile() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file != nil
}

// Select stores the file, derives its preview, clears any previous outcome and
// starts the analysis in the background.
func (o *Orchestrator) Select(ctx context.Context, file *sketch.File) error {
	if file == nil {
		return sketch.ErrValidation
	}

	var preview *sketch.Preview
	if o.previews != nil {
		p, err := o.previews.Create(ctx, file)
		if err != nil {
			o.log.Warn().Err(err).Str("file_id", string(file.ID)).Msg("preview not available")
		} else {
			preview = &p
		}
	}

	o.mu.Lock()
	o.gen++
	gen := o.gen
	old := o.preview
	o.file = file
	o.preview = preview
	o.result = nil
	o.diagram = nil
	o.errMsg = ""
	o.status = StatusAnalyzing
	o.mu.Unlock()

	o.view.Clear()
	o.release(old)
	o.log.Info().Str("file_id", string(file.ID)).Uint64("generation", gen).Msg("sketch selected")
	o.launch(gen, file)
	return nil
}

// Retry re-runs the analysis on the stored file. Only valid from the error state.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.status != StatusError || o.file == nil {
		o.mu.Unlock()
		return sketch.ErrInvalidTransition
	}
	o.gen++
	gen := o.gen
	file := o.file
	o.status = StatusAnalyzing
	o.errMsg = ""
	o.result = nil
	o.diagram = nil
	o.mu.Unlock()

	o.log.Info().Str("file_id", string(file.ID)).Uint64("generation", gen).Msg("analysis retried")
	o.launch(gen, file)
	return nil
}

// Reset discards file, preview, result and error from any state.
func (o *Orchestrator) Reset(ctx context.Context) {
	o.mu.Lock()
	o.gen++
	old := o.preview
	o.file = nil
	o.preview = nil
	o.result = nil
	o.diagram = nil
	o.errMsg = ""
	o.status = StatusIdle
	o.mu.Unlock()

	o.view.Clear()
	o.release(old)
}

// Snapshot returns a copy of the current state
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := State{Status: o.status, Generation: o.gen, Error: o.errMsg}
	if o.file != nil {
		s.File = &FileInfo{ID: o.file.ID, Name: o.file.Name, MediaType: o.file.MediaType, Size: o.file.Size}
	}
	if o.preview != nil {
		p := *o.preview
		s.Preview = &p
	}
	if o.result != nil {
		r := *o.result
		r.TechStack = append([]sketch.TechStackItem(nil), o.result.TechStack...)
		s.Result = &r
		s.Cards = stack.Cards(r.TechStack)
	}
	if o.diagram != nil {
		d := *o.diagram
		s.Diagram = &d
	}
	s.Rendering = o.status == StatusSuccess && o.diagram == nil
	return s
}

// Wait blocks until every launched task has finished
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

func (o *Orchestrator) launch(gen uint64, file *sketch.File) {
	if o.metrics != nil {
		o.metrics.AnalysisStarted()
	}
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()

		// detached from the request so the call runs to completion
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		res, err := o.analyzer.Analyze(ctx, file)
		cancel()

		if o.metrics != nil {
			o.metrics.AnalysisFinished(err)
		}
		if !o.finish(gen, res, err) {
			return
		}
		o.render(gen, res.DiagramSource)
	}()
}

// finish applies an analysis outcome and reports whether a render should follow
func (o *Orchestrator) finish(gen uint64, res sketch.AnalysisResult, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen {
		o.stale(gen, "analysis")
		return false
	}
	if err != nil {
		o.status = StatusError
		o.errMsg = errorMessage(err)
		o.result = nil
		o.diagram = nil
		return false
	}
	o.status = StatusSuccess
	o.result = &res
	o.diagram = nil
	return true
}

func (o *Orchestrator) render(gen uint64, source string) {
	d := o.view.Update(context.Background(), source)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.result == nil || o.result.DiagramSource != d.Source {
		o.stale(gen, "render")
		return
	}
	o.diagram = &d
}

// stale must be called with mu held
func (o *Orchestrator) stale(gen uint64, what string) {
	o.log.Debug().Uint64("generation", gen).Uint64("current", o.gen).Str("task", what).Msg("stale result discarded")
	if o.metrics != nil {
		o.metrics.StaleDiscarded()
	}
}

func (o *Orchestrator) release(p *sketch.Preview) {
	if p == nil || o.previews == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.previews.Release(ctx, *p); err != nil {
		o.log.Warn().Err(err).Str("preview", p.Key).Msg("preview release failed")
	}
}

func errorMessage(err error) string {
	if err == nil {
		return GenericErrorMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return GenericErrorMessage
}
