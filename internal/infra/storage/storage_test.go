package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestThumbnailScalesLargeImages(t *testing.T) {
	data, ct, err := Thumbnail(pngBytes(t, 400, 200), 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/jpeg" {
		t.Fatalf("content type = %s", ct)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("bounds = %v", b)
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	small := pngBytes(t, 10, 10)
	data, ct, err := Thumbnail(small, 100, 0)
	if err != nil || ct != "image/png" || !bytes.Equal(data, small) {
		t.Fatalf("small image changed: %s %v", ct, err)
	}
}

func TestThumbnailRejectsNonImages(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte("<script>alert(document.domain)</script>"),
		[]byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`),
	} {
		if _, _, err := Thumbnail(raw, 100, 0); !errors.Is(err, ErrNotImage) {
			t.Errorf("%q: err = %v, want ErrNotImage", raw, err)
		}
	}
}

// pngHeader returns a PNG signature plus IHDR for a w x h gray image, with no
// pixel data. DecodeConfig reads only this much.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	chunk := append([]byte("IHDR"), ihdr...)
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestThumbnailRefusesHugeDimensions(t *testing.T) {
	_, _, err := Thumbnail(pngHeader(12000, 12000), 100, 40_000_000)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}

	_, _, err = Thumbnail(pngBytes(t, 400, 200), 100, 1000)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("configured limit ignored: %v", err)
	}
}

func TestMemoryStoreRefusesNonImages(t *testing.T) {
	s := NewMemoryStore("/previews/", 0, 0)
	_, err := s.Create(context.Background(), &sketch.File{ID: "f1", MediaType: "text/html", Data: []byte("<script>alert(1)</script>")})
	if !errors.Is(err, ErrNotImage) {
		t.Fatalf("err = %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore("/previews/", 0, 0)
	ctx := context.Background()

	p, err := s.Create(ctx, &sketch.File{ID: "f1", MediaType: "image/png", Data: pngBytes(t, 8, 8)})
	if err != nil {
		t.Fatal(err)
	}
	if p.URL != "/previews/"+p.Key {
		t.Fatalf("url = %s", p.URL)
	}
	if _, ct, ok := s.Get(p.Key); !ok || ct != "image/png" {
		t.Fatalf("preview not stored: %v %s", ok, ct)
	}

	if err := s.Release(ctx, p); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
	if err := s.Release(ctx, p); err == nil {
		t.Fatal("double release should fail")
	}
}
