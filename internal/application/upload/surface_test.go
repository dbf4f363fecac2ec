package upload

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

func TestDropRejectsNonImages(t *testing.T) {
	for _, mt := range []string{"text/plain", "application/pdf", "", "video/mp4"} {
		calls := 0
		s := NewSurface(func(*sketch.File) error { calls++; return nil }, nil, zerolog.Nop())
		err := s.SelectFile(SourceDrop, &sketch.File{Name: "notes.txt", MediaType: mt})
		if !errors.Is(err, sketch.ErrValidation) {
			t.Errorf("%q: err = %v", mt, err)
		}
		if calls != 0 {
			t.Errorf("%q: callback invoked", mt)
		}
	}
}

func TestDropAcceptsImage(t *testing.T) {
	var got *sketch.File
	s := NewSurface(func(f *sketch.File) error { got = f; return nil }, nil, zerolog.Nop())
	f := &sketch.File{Name: "photo.png", MediaType: "image/png"}
	if err := s.SelectFile(SourceDrop, f); err != nil {
		t.Fatal(err)
	}
	if got != f {
		t.Fatal("callback not invoked with the file")
	}
}

func TestPickerDoesNotRevalidate(t *testing.T) {
	calls := 0
	s := NewSurface(func(*sketch.File) error { calls++; return nil }, nil, zerolog.Nop())
	if err := s.SelectFile(SourcePicker, &sketch.File{Name: "x.bin", MediaType: "application/octet-stream"}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestDisabledSuppressesSelection(t *testing.T) {
	calls := 0
	s := NewSurface(func(*sketch.File) error { calls++; return nil }, func() bool { return true }, zerolog.Nop())
	for _, src := range []Source{SourceDrop, SourcePicker} {
		if err := s.SelectFile(src, &sketch.File{MediaType: "image/png"}); !errors.Is(err, sketch.ErrDisabled) {
			t.Errorf("%s: err = %v", src, err)
		}
	}
	if calls != 0 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestParseSource(t *testing.T) {
	if ParseSource("picker") != SourcePicker || ParseSource("drop") != SourceDrop || ParseSource("") != SourceDrop {
		t.Fatal("unexpected source mapping")
	}
}
