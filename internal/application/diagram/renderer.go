package diagram

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
)

// Renderer applies the display policy around a compiler: success yields the
// full SVG, failure yields the fixed message plus the untouched source.
type Renderer struct {
	compiler domain.Compiler
	theme    domain.Theme
	log      zerolog.Logger
	onFail   func()
}

func NewRenderer(compiler domain.Compiler, theme domain.Theme, log zerolog.Logger) *Renderer {
	return &Renderer{
		compiler: compiler,
		theme:    theme,
		log:      log.With().Str("component", "diagram").Logger(),
	}
}

// OnFailure registers a hook called for every failed compile (metrics)
func (r *Renderer) OnFailure(fn func()) *Renderer {
	r.onFail = fn
	return r
}

// Render compiles source once. An empty source renders nothing.
func (r *Renderer) Render(ctx context.Context, source string) domain.Diagram {
	if source == "" {
		return domain.Diagram{}
	}
	svg, err := r.compiler.Compile(ctx, source, r.theme)
	if err != nil {
		r.log.Warn().Err(err).Int("source_len", len(source)).Msg("diagram render failed")
		if r.onFail != nil {
			r.onFail()
		}
		return domain.Diagram{Source: source, Failed: true, Message: domain.FailureMessage}
	}
	return domain.Diagram{Source: source, SVG: svg}
}

// View re-renders only when the source changes; the same source returns the
// previous outcome without compiling again.
type View struct {
	renderer *Renderer

	mu   sync.Mutex
	last *domain.Diagram
}

func NewView(r *Renderer) *View {
	return &View{renderer: r}
}

func (v *View) Update(ctx context.Context, source string) domain.Diagram {
	if source == "" {
		v.Clear()
		return domain.Diagram{}
	}

	v.mu.Lock()
	if v.last != nil && v.last.Source == source {
		d := *v.last
		v.mu.Unlock()
		return d
	}
	v.mu.Unlock()

	d := v.renderer.Render(ctx, source)

	v.mu.Lock()
	v.last = &d
	v.mu.Unlock()
	return d
}

// Clear forgets the last outcome
func (v *View) Clear() {
	v.mu.Lock()
	v.last = nil
	v.mu.Unlock()
}
