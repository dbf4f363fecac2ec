package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	defaultMaxDimension = 1024
	defaultMaxPixels    = 40_000_000
)

var (
	// ErrNotImage means the bytes do not decode as a known raster format
	ErrNotImage = errors.New("preview: not a decodable image")
	// ErrImageTooLarge means the declared pixel count is over the limit
	ErrImageTooLarge = errors.New("preview: image dimensions over limit")
)

// Thumbnail scales an image down to fit maxDim x maxDim and encodes it as JPEG.
// The content type always comes from the decoded format, never from the
// uploader. Images with more than maxPixels pixels are not decoded.
func Thumbnail(data []byte, maxDim, maxPixels int) ([]byte, string, error) {
	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return data, "image/" + format, nil
	}

	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
