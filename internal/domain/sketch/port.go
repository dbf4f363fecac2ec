package sketch

import "context"

// Analyzer turns one sketch into a structured description.
// Exactly one attempt is made per call.
type Analyzer interface {
	Analyze(ctx context.Context, file *File) (AnalysisResult, error)
}

// PreviewStore derives and releases preview references for uploaded sketches
type PreviewStore interface {
	Create(ctx context.Context, file *File) (Preview, error)
	Release(ctx context.Context, p Preview) error
}
