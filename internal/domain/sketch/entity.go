package sketch

import (
	"fmt"
	"strings"
)

// FileID identifies one uploaded sketch
type FileID string

// File is the raw uploaded image plus its declared media type
type File struct {
	ID        FileID `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
}

// IsImage reports whether the declared media type is image/*
func (f *File) IsImage() bool {
	return IsImageType(f.MediaType)
}

// IsImageType checks a declared media type against image/*
func IsImageType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// TechStackItem maps a logical component to a recommended technology
type TechStackItem struct {
	Component  string `json:"component"`
	Technology string `json:"technology"`
	Reasoning  string `json:"reasoning"`
}

// AnalysisResult is the structured description returned by the inference service.
// TechStack order is display order and is kept as received.
type AnalysisResult struct {
	Summary       string          `json:"summary"`
	DiagramSource string          `json:"mermaidCode"`
	TechStack     []TechStackItem `json:"techStack"`
}

// Validate checks that every required field is present. Stack items only need
// to exist; an empty reasoning is still shown.
func (r *AnalysisResult) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if strings.TrimSpace(r.DiagramSource) == "" {
		return fmt.Errorf("mermaidCode is required")
	}
	if r.TechStack == nil {
		return fmt.Errorf("techStack is required")
	}
	return nil
}

// Preview is a transient handle over the uploaded image bytes.
// It must be released when the file is reset or replaced.
type Preview struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
