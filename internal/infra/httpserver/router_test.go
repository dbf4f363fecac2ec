package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	appai "github.com/bryanwahyu/sketch2sys/internal/application/ai"
	appdiagram "github.com/bryanwahyu/sketch2sys/internal/application/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/application/workspace"
	domdiagram "github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
	"github.com/bryanwahyu/sketch2sys/internal/infra/storage"
)

type outcome struct {
	res sketch.AnalysisResult
	err error
}

type scriptedAnalyzer struct {
	mu       sync.Mutex
	calls    int
	outcomes []outcome
}

func (s *scriptedAnalyzer) Analyze(context.Context, *sketch.File) (sketch.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.outcomes[len(s.outcomes)-1]
	if s.calls < len(s.outcomes) {
		o = s.outcomes[s.calls]
	}
	s.calls++
	return o.res, o.err
}

func (s *scriptedAnalyzer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type svgCompiler struct{}

func (svgCompiler) Compile(_ context.Context, source string, _ domdiagram.Theme) (string, error) {
	if strings.Contains(source, "invalid") {
		return "", fmt.Errorf("parse error: %w", sketch.ErrRender)
	}
	return `<svg data-test="ok"></svg>`, nil
}

func threeTier() sketch.AnalysisResult {
	return sketch.AnalysisResult{
		Summary:       "A three tier web app",
		DiagramSource: `graph TD; A["Web"] --> B["API"]; B --> C["DB"]`,
		TechStack: []sketch.TechStackItem{
			{Component: "Frontend", Technology: "React", Reasoning: "SPA"},
			{Component: "API", Technology: "Go", Reasoning: "fast"},
			{Component: "DB", Technology: "PostgreSQL", Reasoning: "relational"},
		},
	}
}

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	analyzer *scriptedAnalyzer
	previews *storage.MemoryStore
}

func newTestEnv(t *testing.T, outcomes ...outcome) *testEnv {
	t.Helper()
	analyzer := &scriptedAnalyzer{outcomes: outcomes}
	svc := appai.NewService(analyzer, nil, "test-model", zerolog.Nop())
	renderer := appdiagram.NewRenderer(svgCompiler{}, domdiagram.DarkTheme(), zerolog.Nop())
	previews := storage.NewMemoryStore("/previews/", 0, 0)
	sessions := workspace.NewSessions(func() *workspace.Orchestrator {
		return workspace.New(svc, previews, renderer)
	}, time.Minute, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(Deps{
		Sessions: sessions,
		AI:       svc,
		Renderer: renderer,
		Previews: previews,
		Log:      zerolog.Nop(),
	}))
	t.Cleanup(func() {
		srv.Close()
		sessions.Close(context.Background())
	})

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{srv: srv, client: client, analyzer: analyzer, previews: previews}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, source, name, contentType string, data []byte, asJSON bool) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("source", source)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/sketch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) post(t *testing.T, path string, asJSON bool) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, nil)
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func (e *testEnv) state(t *testing.T) workspace.State {
	t.Helper()
	_, body := e.get(t, "/sketch/state")
	var st workspace.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, body)
	}
	return st
}

func (e *testEnv) waitFor(t *testing.T, pred func(workspace.State) bool) workspace.State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		st := e.state(t)
		if pred(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("state never reached, last: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPhotoAnalyzedAndRendered(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})

	resp := env.upload(t, "picker", "photo.png", "image/png", pngBytes(t), true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	st := env.waitFor(t, func(s workspace.State) bool { return s.Succeeded() && s.Diagram != nil })
	if st.Result.Summary != "A three tier web app" || len(st.Cards) != 3 {
		t.Fatalf("state = %+v", st)
	}
	if st.Cards[0].Technology != "React" || st.Cards[2].Technology != "PostgreSQL" {
		t.Fatalf("cards out of order: %v", st.Cards)
	}
	if st.Preview == nil {
		t.Fatal("preview missing")
	}

	code, page := env.get(t, "/")
	if code != http.StatusOK {
		t.Fatalf("page status = %d", code)
	}
	for _, want := range []string{"A three tier web app", `<svg data-test="ok">`, "PostgreSQL", "Show Mermaid Source Code"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, err := env.client.Get(env.srv.URL + st.Preview.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("preview = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("preview served without nosniff")
	}
	if env.analyzer.count() != 1 {
		t.Fatalf("calls = %d", env.analyzer.count())
	}
}

func TestPickedHTMLGetsNoPreview(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})

	markup := []byte("<html><script>alert(document.cookie)</script></html>")
	resp := env.upload(t, "picker", "photo.png", "text/html", markup, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	st := env.waitFor(t, func(s workspace.State) bool { return s.Succeeded() })
	if st.Preview != nil {
		t.Fatalf("preview created for markup: %+v", st.Preview)
	}
	if env.previews.Len() != 0 {
		t.Fatalf("stored previews = %d", env.previews.Len())
	}
}

func TestDroppedTextFileRejected(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})

	resp := env.upload(t, "drop", "notes.txt", "text/plain", []byte("hello"), true)
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp = env.upload(t, "drop", "notes.txt", "text/plain", []byte("hello"), false)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/?notice=invalid-type" {
		t.Fatalf("redirect = %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
	_, page := env.get(t, "/?notice=invalid-type")
	if !strings.Contains(page, "Please upload an image file.") {
		t.Fatal("notice not shown")
	}

	if st := env.state(t); !st.Idle() || st.File != nil {
		t.Fatalf("state = %+v", st)
	}
	if env.analyzer.count() != 0 {
		t.Fatalf("calls = %d", env.analyzer.count())
	}
}

func TestTimeoutThenRetry(t *testing.T) {
	env := newTestEnv(t,
		outcome{err: &sketch.ServiceError{Err: errors.New("request timed out")}},
		outcome{res: threeTier()},
	)

	env.upload(t, "picker", "photo.png", "image/png", pngBytes(t), true)
	st := env.waitFor(t, func(s workspace.State) bool { return s.Failed() })
	if st.Error != "request timed out" || st.Result != nil {
		t.Fatalf("state = %+v", st)
	}
	_, page := env.get(t, "/")
	if !strings.Contains(page, "Analysis Failed") || !strings.Contains(page, "Try Again") {
		t.Fatal("error panel missing")
	}

	resp := env.post(t, "/sketch/retry", false)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("retry status = %d", resp.StatusCode)
	}
	st = env.waitFor(t, func(s workspace.State) bool { return s.Succeeded() && s.Diagram != nil })
	if st.Error != "" || st.Result.Summary != "A three tier web app" {
		t.Fatalf("state = %+v", st)
	}
	if env.analyzer.count() != 2 {
		t.Fatalf("calls = %d", env.analyzer.count())
	}
}

func TestUploadDisabledWhileLoadedAndReset(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})

	env.upload(t, "picker", "photo.png", "image/png", pngBytes(t), true)
	env.waitFor(t, func(s workspace.State) bool { return s.Succeeded() && s.Diagram != nil })

	resp := env.upload(t, "drop", "other.png", "image/png", pngBytes(t), true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if resp := env.post(t, "/sketch/retry", true); resp.StatusCode != http.StatusConflict {
		t.Fatalf("retry from success = %d", resp.StatusCode)
	}

	resp = env.post(t, "/sketch/reset", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	st := env.state(t)
	if !st.Idle() || st.File != nil || st.Result != nil || st.Preview != nil {
		t.Fatalf("state = %+v", st)
	}
	_, page := env.get(t, "/")
	if !strings.Contains(page, "Results will appear here after analysis.") {
		t.Fatal("placeholder missing")
	}
	if env.analyzer.count() != 1 {
		t.Fatalf("calls = %d", env.analyzer.count())
	}
}

func TestInvalidDiagramShowsSource(t *testing.T) {
	res := threeTier()
	res.DiagramSource = "graph TD; invalid -->"
	env := newTestEnv(t, outcome{res: res})

	env.upload(t, "picker", "photo.png", "image/png", pngBytes(t), true)
	st := env.waitFor(t, func(s workspace.State) bool { return s.Succeeded() && s.Diagram != nil })
	if !st.Diagram.Failed || st.Diagram.Source != res.DiagramSource || len(st.Cards) != 3 {
		t.Fatalf("state = %+v", st)
	}
	_, page := env.get(t, "/")
	if !strings.Contains(page, "Failed to render diagram. The generated syntax might be invalid.") {
		t.Fatal("failure message missing")
	}
}

func TestAPIAnalyze(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	body, _ := json.Marshal(map[string]string{"image": payload})
	resp, err := env.client.Post(env.srv.URL+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d %s", resp.StatusCode, b)
	}
	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Result.Summary != "A three tier web app" || out.Diagram.SVG == "" || len(out.Cards) != 3 {
		t.Fatalf("response = %+v", out)
	}

	body, _ = json.Marshal(map[string]string{
		"image":    base64.StdEncoding.EncodeToString([]byte("plain text")),
		"mimeType": "text/plain",
	})
	resp2, err := env.client.Post(env.srv.URL+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("non-image status = %d", resp2.StatusCode)
	}
	if env.analyzer.count() != 1 {
		t.Fatalf("calls = %d", env.analyzer.count())
	}
}

func TestAPIAnalysesWithoutAudit(t *testing.T) {
	env := newTestEnv(t, outcome{res: threeTier()})
	code, _ := env.get(t, "/api/v1/analyses")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{sketch.ErrValidation, http.StatusUnsupportedMediaType},
		{sketch.ErrDisabled, http.StatusConflict},
		{sketch.ErrInvalidTransition, http.StatusConflict},
		{&sketch.ServiceError{StatusCode: 429, Err: errors.New("slow down")}, http.StatusTooManyRequests},
		{&sketch.ServiceError{StatusCode: 500, Err: errors.New("boom")}, http.StatusBadGateway},
		{sketch.ErrNoResponse, http.StatusBadGateway},
		{&sketch.MalformedResponseError{Reason: "missing field summary"}, http.StatusBadGateway},
		{appai.ErrAuditDisabled, http.StatusNotFound},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{badRequest("x"), http.StatusBadRequest},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got, _ := statusFor(c.err); got != c.want {
			t.Errorf("%v: status = %d, want %d", c.err, got, c.want)
		}
	}
}
