//go:build !ocr

package ocr

import (
	"context"
	"image"
)

// Enabled reports whether Tesseract support is compiled in
const Enabled = false

// Tesseract is unavailable in this build; see NewTesseract
type Tesseract struct{}

// NewTesseract always returns ErrOCRNotEnabled in builds without the ocr tag
func NewTesseract(languages []string, pageSegMode int) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize always returns ErrOCRNotEnabled
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	return "", ErrOCRNotEnabled
}
