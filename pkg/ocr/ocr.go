// Package ocr turns a rendered image into the positional fields printed on
// the label of a radiograph.
//
// Recognition and interpretation are separate: a client.TextRecognizer
// produces raw text and a Layout maps the text lines onto a RawFieldSet.
// Tesseract is the default recognizer and is compiled in with the "ocr" build
// tag:
//
//	go build -tags ocr
//
// This requires Tesseract to be installed. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr libtesseract-dev
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/xray-deid/pkg/client"
	"github.com/menta2k/xray-deid/pkg/types"
)

// ErrOCRNotEnabled is returned when Tesseract is requested but OCR support
// was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// ErrNoText is returned when recognition yields no usable line at all
var ErrNoText = errors.New("no text recognized")

// Reader runs one recognizer and one layout over an image
type Reader struct {
	engine client.TextRecognizer
	layout Layout
}

// NewReader creates a Reader. A nil layout means DefaultLayout.
func NewReader(engine client.TextRecognizer, layout Layout) *Reader {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Reader{engine: engine, layout: layout}
}

// Read recognizes img and parses the text into fields
func (r *Reader) Read(ctx context.Context, img image.Image) (types.RawFieldSet, error) {
	text, err := r.engine.Recognize(ctx, img)
	if err != nil {
		return types.RawFieldSet{}, fmt.Errorf("recognize: %w", err)
	}
	return r.layout.Parse(text)
}
