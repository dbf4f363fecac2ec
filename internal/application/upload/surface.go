package upload

import (
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// Source tells how a file was selected
type Source string

const (
	SourceDrop   Source = "drop"
	SourcePicker Source = "picker"
)

// ParseSource maps a form value to a Source; unknown values count as drop so
// they are validated.
func ParseSource(v string) Source {
	if Source(v) == SourcePicker {
		return SourcePicker
	}
	return SourceDrop
}

// Surface accepts one file at a time and hands it to the caller's callback.
// It keeps no result state.
type Surface struct {
	onSelect func(*sketch.File) error
	disabled func() bool
	log      zerolog.Logger
}

// NewSurface builds a surface; disabled may be nil.
func NewSurface(onSelect func(*sketch.File) error, disabled func() bool, log zerolog.Logger) *Surface {
	return &Surface{onSelect: onSelect, disabled: disabled, log: log.With().Str("component", "upload").Logger()}
}

// SelectFile validates a selection and forwards it. Dropped files must declare
// an image/* media type; picker selections rely on the browser's accept filter.
func (s *Surface) SelectFile(source Source, file *sketch.File) error {
	if s.disabled != nil && s.disabled() {
		return sketch.ErrDisabled
	}
	if file == nil {
		return sketch.ErrValidation
	}
	if source == SourceDrop && !file.IsImage() {
		s.log.Warn().Str("name", file.Name).Str("media_type", file.MediaType).Msg("rejected non-image drop")
		return sketch.ErrValidation
	}
	return s.onSelect(file)
}
