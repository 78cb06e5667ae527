//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/menta2k/xray-deid/pkg/processing"
)

// Enabled reports whether Tesseract support is compiled in
const Enabled = true

// Tesseract recognizes text with a local Tesseract installation.
// A fresh gosseract client is created per call so one Tesseract value can be
// shared by concurrent workers.
type Tesseract struct {
	languages     []string
	pageSegMode   gosseract.PageSegMode
	clientFactory func() *gosseract.Client
	processor     *processing.Processor
}

// NewTesseract creates a Tesseract recognizer. Empty languages means "eng";
// pageSegMode 0 means PSM_AUTO.
func NewTesseract(languages []string, pageSegMode int) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	psm := gosseract.PageSegMode(pageSegMode)
	if pageSegMode == 0 {
		psm = gosseract.PSM_AUTO
	}
	return &Tesseract{
		languages:     languages,
		pageSegMode:   psm,
		clientFactory: gosseract.NewClient,
		processor:     processing.NewProcessor(),
	}, nil
}

// Recognize performs OCR on img and returns the text with surrounding
// whitespace trimmed
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := t.processor.EncodePNG(img)
	if err != nil {
		return "", err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(t.pageSegMode); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
