package client

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/xray-deid/pkg/processing"
)

// TextRecognizer turns one rendered image into raw text, lines separated by '\n'
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// VisionClient is a chat-style vision model endpoint
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// TranscriptionPrompt asks a vision model for a verbatim line-by-line reading
const TranscriptionPrompt = `Transcribe every line of text visible in this image exactly as written, top to bottom.
Output one line of text per line. Do not add commentary, labels, quotes or formatting.
If there is no text, output nothing.`

// VisionRecognizer adapts a VisionClient into a TextRecognizer
type VisionRecognizer struct {
	Client VisionClient
	Model  string
	Prompt string
	// MaxDim downsizes larger images before upload; 0 keeps full size
	MaxDim int

	processor *processing.Processor
}

// NewVisionRecognizer wraps c with the default transcription prompt
func NewVisionRecognizer(c VisionClient, model string) *VisionRecognizer {
	return &VisionRecognizer{
		Client:    c,
		Model:     model,
		Prompt:    TranscriptionPrompt,
		processor: processing.NewProcessor(),
	}
}

// Recognize sends img to the model and returns its transcription with code
// fences and surrounding whitespace removed
func (v *VisionRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	proc := v.processor
	if proc == nil {
		// literal-constructed recognizers may be shared by workers; never write back
		proc = processing.NewProcessor()
	}
	imgB64, err := proc.PrepareImageForModel(img, "png", v.MaxDim)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	text, err := v.Client.SimpleQuery(ctx, v.Model, v.Prompt, imgB64)
	if err != nil {
		return "", err
	}
	return StripFences(text), nil
}

// StripFences removes a surrounding ``` block that chat models like to add
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		} else {
			raw = ""
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	return strings.TrimSpace(raw)
}
