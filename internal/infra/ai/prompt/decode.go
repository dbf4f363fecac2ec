package prompt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// EncodeImage returns the bare base64 payload and the data URL the API expects.
func EncodeImage(data []byte, mediaType string) (payload, dataURL string) {
	payload = base64.StdEncoding.EncodeToString(data)
	return payload, "data:" + mediaType + ";base64," + payload
}

// StripDataURL removes a "data:<mime>;base64," envelope and returns the
// payload with the media type it declared (empty when there was no envelope).
func StripDataURL(s string) (payload, mediaType string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return s, ""
	}
	meta := strings.TrimPrefix(s[:comma], "data:")
	mediaType, _, _ = strings.Cut(meta, ";")
	return s[comma+1:], mediaType
}

// DecodeImage decodes a base64 payload, with or without data URL envelope
func DecodeImage(s string) ([]byte, string, error) {
	payload, mediaType := StripDataURL(s)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, mediaType, nil
}

// DecodeAnalysis parses the service payload and checks it against the schema.
func DecodeAnalysis(text string) (sketch.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return sketch.AnalysisResult{}, sketch.ErrNoResponse
	}

	// wire shape keeps pointers so a missing field is distinguishable from ""
	var wire struct {
		MermaidCode *string `json:"mermaidCode"`
		Summary     *string `json:"summary"`
		TechStack   *[]struct {
			Component  *string `json:"component"`
			Technology *string `json:"technology"`
			Reasoning  *string `json:"reasoning"`
		} `json:"techStack"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&wire); err != nil {
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: "payload is not valid JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: "trailing data after JSON object"}
	}

	switch {
	case wire.MermaidCode == nil:
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: "missing field mermaidCode"}
	case wire.Summary == nil:
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: "missing field summary"}
	case wire.TechStack == nil:
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: "missing field techStack"}
	}

	res := sketch.AnalysisResult{
		Summary:       *wire.Summary,
		DiagramSource: *wire.MermaidCode,
		TechStack:     make([]sketch.TechStackItem, 0, len(*wire.TechStack)),
	}
	for i, it := range *wire.TechStack {
		if it.Component == nil || it.Technology == nil || it.Reasoning == nil {
			return sketch.AnalysisResult{}, &sketch.MalformedResponseError{
				Reason: fmt.Sprintf("techStack[%d] is missing a required field", i),
			}
		}
		res.TechStack = append(res.TechStack, sketch.TechStackItem{
			Component:  *it.Component,
			Technology: *it.Technology,
			Reasoning:  *it.Reasoning,
		})
	}

	if err := res.Validate(); err != nil {
		return sketch.AnalysisResult{}, &sketch.MalformedResponseError{Reason: err.Error()}
	}
	return res, nil
}
