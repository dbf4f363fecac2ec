package prompt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

func TestDecodeAnalysis(t *testing.T) {
	payload := `{"summary":"A three-tier web app","mermaidCode":"graph TD; A[\"Client\"]-->B[\"API\"]",` +
		`"techStack":[{"component":"API","technology":"Go","reasoning":"concurrency"},` +
		`{"component":"Primary DB","technology":"PostgreSQL","reasoning":"relational"}]}`

	res, err := DecodeAnalysis(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Summary != "A three-tier web app" {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.DiagramSource != `graph TD; A["Client"]-->B["API"]` {
		t.Errorf("diagram = %q", res.DiagramSource)
	}
	if len(res.TechStack) != 2 || res.TechStack[0].Technology != "Go" || res.TechStack[1].Component != "Primary DB" {
		t.Errorf("stack order not preserved: %+v", res.TechStack)
	}
}

func TestDecodeAnalysisKeepsEmptyStackFields(t *testing.T) {
	res, err := DecodeAnalysis(`{"mermaidCode":"graph TD","summary":"x","techStack":[{"component":"Cache","technology":"Redis","reasoning":""}]}` + "\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.TechStack) != 1 || res.TechStack[0].Reasoning != "" {
		t.Fatalf("stack = %+v", res.TechStack)
	}
}

func TestDecodeAnalysisFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", "", sketch.ErrNoResponse},
		{"blank", "  \n", sketch.ErrNoResponse},
		{"not json", "Here is your diagram", sketch.ErrMalformedResponse},
		{"missing summary", `{"mermaidCode":"graph TD","techStack":[]}`, sketch.ErrMalformedResponse},
		{"missing stack", `{"mermaidCode":"graph TD","summary":"x"}`, sketch.ErrMalformedResponse},
		{"wrong type", `{"mermaidCode":"graph TD","summary":42,"techStack":[]}`, sketch.ErrMalformedResponse},
		{"trailing text", `{"mermaidCode":"graph TD","summary":"x","techStack":[]} this is not json`, sketch.ErrMalformedResponse},
		{"two objects", `{"mermaidCode":"graph TD","summary":"x","techStack":[]}{}`, sketch.ErrMalformedResponse},
		{"item missing reasoning", `{"mermaidCode":"graph TD","summary":"x","techStack":[{"component":"a","technology":"b"}]}`, sketch.ErrMalformedResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeAnalysis(tc.payload)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestStripDataURL(t *testing.T) {
	payload, mt := StripDataURL("data:image/jpeg;base64,QUJD")
	if payload != "QUJD" || mt != "image/jpeg" {
		t.Fatalf("got %q %q", payload, mt)
	}
	payload, mt = StripDataURL("QUJD")
	if payload != "QUJD" || mt != "" {
		t.Fatalf("bare payload changed: %q %q", payload, mt)
	}

	data, mt, err := DecodeImage("data:image/png;base64,QUJD")
	if err != nil || string(data) != "ABC" || mt != "image/png" {
		t.Fatalf("DecodeImage = %q %q %v", data, mt, err)
	}
	if _, _, err := DecodeImage("%%%"); err == nil {
		t.Fatal("expected base64 error")
	}
}

func TestEncodeImage(t *testing.T) {
	payload, url := EncodeImage([]byte("ABC"), "image/png")
	if payload != "QUJD" {
		t.Fatalf("payload = %q", payload)
	}
	if url != "data:image/png;base64,QUJD" {
		t.Fatalf("url = %q", url)
	}
}

func TestSchemaRequiresAllFields(t *testing.T) {
	b, err := json.Marshal(Schema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	s := string(b)
	for _, field := range []string{`"mermaidCode"`, `"summary"`, `"techStack"`, `"component"`, `"technology"`, `"reasoning"`} {
		if !strings.Contains(s, field) {
			t.Errorf("schema missing %s: %s", field, s)
		}
	}
	if !strings.Contains(GetSystemPrompt(), "double quotes") || !strings.Contains(GetUserPrompt(), "double quotes") {
		t.Error("prompts must restate the quoting rule")
	}
}
