package diagram

import "context"

// Compiler turns diagram source into SVG markup.
// Syntax failures wrap sketch.ErrRender.
type Compiler interface {
	Compile(ctx context.Context, source string, theme Theme) (string, error)
}
