package httpserver

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/sketch2sys/internal/application/upload"
	"github.com/bryanwahyu/sketch2sys/internal/application/workspace"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/middleware"
)

const invalidTypeNotice = "Please upload an image file."

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

type pageData struct {
	State      workspace.State
	Notice     string
	Disabled   bool
	DiagramSVG template.HTML
}

// session returns the caller's orchestrator, issuing a cookie on first visit
func (r *Router) session(w http.ResponseWriter, req *http.Request) *workspace.Orchestrator {
	if c, err := req.Cookie(r.cookieName); err == nil && middleware.ValidateSessionID(c.Value) == nil {
		return r.sessions.GetOrCreate(c.Value)
	}
	id := r.sessions.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return r.sessions.GetOrCreate(id)
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// done answers a state-changing request: JSON snapshot for scripts, redirect for forms
func done(w http.ResponseWriter, req *http.Request, o *workspace.Orchestrator, status int) error {
	if wantsJSON(req) {
		return writeJSON(w, status, o.Snapshot())
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
	return nil
}

// GET /
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	o := r.session(w, req)
	st := o.Snapshot()

	data := pageData{State: st, Disabled: st.File != nil}
	if req.URL.Query().Get("notice") == "invalid-type" {
		data.Notice = invalidTypeNotice
	}
	if st.Diagram != nil && !st.Diagram.Failed {
		// compiled with securityLevel strict
		data.DiagramSVG = template.HTML(st.Diagram.SVG)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	return r.page.Execute(w, data)
}

// GET /sketch/state
func (r *Router) handleState(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.session(w, req).Snapshot())
}

// POST /sketch (multipart: file, source=drop|picker)
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	o := r.session(w, req)

	file, source, err := r.readUpload(w, req)
	if err != nil {
		return err
	}

	surface := upload.NewSurface(func(f *sketch.File) error {
		return o.Select(req.Context(), f)
	}, o.HasFile, r.log)

	err = surface.SelectFile(source, file)
	switch {
	case err == nil:
		return done(w, req, o, http.StatusAccepted)
	case wantsJSON(req):
		return err
	case errors.Is(err, sketch.ErrValidation):
		http.Redirect(w, req, "/?notice=invalid-type", http.StatusSeeOther)
		return nil
	case errors.Is(err, sketch.ErrDisabled):
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return nil
	default:
		return err
	}
}

// POST /sketch/retry
func (r *Router) handleRetry(w http.ResponseWriter, req *http.Request) error {
	o := r.session(w, req)
	if err := o.Retry(req.Context()); err != nil {
		if wantsJSON(req) {
			return err
		}
	}
	return done(w, req, o, http.StatusAccepted)
}

// POST /sketch/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	o := r.session(w, req)
	o.Reset(req.Context())
	return done(w, req, o, http.StatusOK)
}

// GET /previews/{key}
func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) error {
	data, ct, ok := r.previews.Get(chi.URLParam(req, "key"))
	if !ok || !strings.HasPrefix(ct, "image/") || ct == "image/svg+xml" {
		http.NotFound(w, req)
		return nil
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, err := w.Write(data)
	return err
}
