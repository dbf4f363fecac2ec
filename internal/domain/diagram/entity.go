package diagram

// FailureMessage is shown in place of the diagram when compilation fails
const FailureMessage = "Failed to render diagram. The generated syntax might be invalid."

// Diagram is the outcome of rendering one diagram source
type Diagram struct {
	Source  string `json:"source"`
	SVG     string `json:"svg,omitempty"`
	Failed  bool   `json:"failed"`
	Message string `json:"message,omitempty"`
}

// Empty reports whether there is nothing to display
func (d Diagram) Empty() bool {
	return d.Source == "" && d.SVG == "" && !d.Failed
}
