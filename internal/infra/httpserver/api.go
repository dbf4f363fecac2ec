package httpserver

import (
	"net/http"
	"strconv"

	"github.com/bryanwahyu/sketch2sys/internal/application/stack"
	"github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/middleware"
)

type analyzeResponse struct {
	Result  sketch.AnalysisResult `json:"result"`
	Diagram diagram.Diagram       `json:"diagram"`
	Cards   []stack.Card          `json:"cards"`
}

// POST /api/v1/analyze
// One inference call plus a diagram render; nothing is kept in a session.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	file, err := r.readAPIImage(w, req)
	if err != nil {
		return err
	}
	if !file.IsImage() {
		return sketch.ErrValidation
	}

	res, err := r.ai.Analyze(req.Context(), file)
	if err != nil {
		return err
	}
	d := r.renderer.Render(req.Context(), res.DiagramSource)

	return writeJSON(w, http.StatusOK, analyzeResponse{
		Result:  res,
		Diagram: d,
		Cards:   stack.Cards(res.TechStack),
	})
}

// GET /api/v1/analyses?page=&page_size=
func (r *Router) handleAnalyses(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.ai.ListAnalyses(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}
