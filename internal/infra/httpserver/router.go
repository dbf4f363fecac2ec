package httpserver

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appai "github.com/bryanwahyu/sketch2sys/internal/application/ai"
	appdiagram "github.com/bryanwahyu/sketch2sys/internal/application/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/application/workspace"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/middleware"
)

const defaultMaxUpload = 10 << 20

// PreviewSource serves preview bytes kept in process (memory driver)
type PreviewSource interface {
	Get(key string) ([]byte, string, bool)
}

// Deps are the collaborators of the router. Previews, Metrics and Limiter are optional.
type Deps struct {
	Sessions       *workspace.Sessions
	AI             *appai.Service
	Renderer       *appdiagram.Renderer
	Previews       PreviewSource
	Metrics        *middleware.Metrics
	Health         map[string]middleware.HealthChecker
	Ready          map[string]middleware.HealthChecker
	Limiter        *middleware.RateLimiter
	APIKeys        map[string]string
	CORSOrigins    []string
	CookieName     string
	SecureCookie   bool
	MaxUploadBytes int64
	Log            zerolog.Logger
}

type Router struct {
	sessions     *workspace.Sessions
	ai           *appai.Service
	renderer     *appdiagram.Renderer
	previews     PreviewSource
	cookieName   string
	secureCookie bool
	maxBytes     int64
	page         *template.Template
	log          zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		sessions:     d.Sessions,
		ai:           d.AI,
		renderer:     d.Renderer,
		previews:     d.Previews,
		cookieName:   d.CookieName,
		secureCookie: d.SecureCookie,
		maxBytes:     d.MaxUploadBytes,
		page:         pageTemplate,
		log:          d.Log.With().Str("component", "http").Logger(),
	}
	if r.cookieName == "" {
		r.cookieName = "sketch2sys_session"
	}
	if r.maxBytes <= 0 {
		r.maxBytes = defaultMaxUpload
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(r.log))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	mux.Use(chimw.Recoverer)

	if d.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/health/live", middleware.LivenessHandler(time.Now()))
	mux.Get("/health/ready", middleware.ReadinessHandler(d.Ready))

	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter, middleware.KeyByClient())
	}

	mux.Get("/", r.wrap(r.handlePage))
	mux.Route("/sketch", func(rt chi.Router) {
		rt.Get("/state", r.wrap(r.handleState))
		rt.With(limit).Post("/", r.wrap(r.handleSelect))
		rt.With(limit).Post("/retry", r.wrap(r.handleRetry))
		rt.Post("/reset", r.wrap(r.handleReset))
	})
	if r.previews != nil {
		mux.Get("/previews/{key}", r.wrap(r.handlePreview))
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Route("/api/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		rt.Use(middleware.APIKeyAuth(d.APIKeys))
		rt.With(limit).Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/analyses", r.wrap(r.handleAnalyses))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// requestError carries a status for input problems found by the handlers
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, msg: msg} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			r.log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		}
		http.Error(w, msg, status)
	}
}

func statusFor(err error) (int, string) {
	var re *requestError
	var tooBig *http.MaxBytesError
	var svc *sketch.ServiceError
	switch {
	case errors.As(err, &re):
		return re.status, re.msg
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, sketch.ErrValidation):
		return http.StatusUnsupportedMediaType, invalidTypeNotice
	case errors.Is(err, sketch.ErrDisabled), errors.Is(err, sketch.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, sketch.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded"
	case errors.Is(err, sketch.ErrNoResponse), errors.Is(err, sketch.ErrMalformedResponse), errors.As(err, &svc):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, appai.ErrAuditDisabled):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
