package workspace

import (
	domdiagram "github.com/bryanwahyu/sketch2sys/internal/domain/diagram"
	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"

	"github.com/bryanwahyu/sketch2sys/internal/application/stack"
)

// Status enum
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// GenericErrorMessage is shown when a failure carries no description
const GenericErrorMessage = "Something went wrong during analysis."

// FileInfo is the part of a SketchFile the view needs
type FileInfo struct {
	ID        sketch.FileID `json:"id"`
	Name      string        `json:"name"`
	MediaType string        `json:"media_type"`
	Size      int64         `json:"size"`
}

// State is an immutable snapshot of one orchestrator
type State struct {
	Status     Status                 `json:"status"`
	Generation uint64                 `json:"generation"`
	File       *FileInfo              `json:"file,omitempty"`
	Preview    *sketch.Preview        `json:"preview,omitempty"`
	Result     *sketch.AnalysisResult `json:"result,omitempty"`
	Diagram    *domdiagram.Diagram    `json:"diagram,omitempty"`
	Rendering  bool                   `json:"rendering"`
	Cards      []stack.Card           `json:"cards,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func (s State) Idle() bool      { return s.Status == StatusIdle }
func (s State) Analyzing() bool { return s.Status == StatusAnalyzing }
func (s State) Succeeded() bool { return s.Status == StatusSuccess }
func (s State) Failed() bool    { return s.Status == StatusError }
