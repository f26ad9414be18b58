// Package imaging builds the small avatar previews shown before an upload.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding
	"math"

	"golang.org/x/image/draw"
)

const (
	// MaxPreviewSize bounds the longer side of a preview in pixels.
	MaxPreviewSize = 150
	// PreviewQuality matches a canvas toDataURL quality of 0.7.
	PreviewQuality = 70
	// MaxSourcePixels caps the decoded size of an upload. The byte limit on
	// uploads says nothing about the dimensions a header declares.
	MaxSourcePixels = 40_000_000
)

var ErrLoadImage = errors.New("Failed to load image")

// PreviewSize scales width and height so neither exceeds max, keeping the
// aspect ratio. Images already small enough are left alone.
func PreviewSize(width, height, max int) (int, int) {
	if width > height {
		if width > max {
			height = int(math.Round(float64(height) * (float64(max) / float64(width))))
			width = max
		}
	} else if height > max {
		width = int(math.Round(float64(width) * (float64(max) / float64(height))))
		height = max
	}
	return width, height
}

// Preview decodes a JPEG or PNG and returns a JPEG data URL no larger than
// MaxPreviewSize on either side.
func Preview(data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrLoadImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return "", ErrLoadImage
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrLoadImage
	}

	bounds := src.Bounds()
	w, h := PreviewSize(bounds.Dx(), bounds.Dy(), MaxPreviewSize)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: PreviewQuality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
