package storage

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// GenerateThumbnail decodes the image at src, fits it inside a
// maxDim x maxDim box without enlargement, and writes it to dst as JPEG.
func GenerateThumbnail(src, dst string, maxDim int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create derivative file: %w", err)
	}
	defer out.Close()

	if err := imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to encode derivative: %w", err)
	}
	return nil
}

// RenderPreview re-encodes the image at src as a size-capped JPEG and
// returns the bytes. Callers fall back to the original bytes when this
// fails at request time.
func RenderPreview(src string, maxDim int) ([]byte, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
