// Package xraydeid removes burned-in patient text from x-ray images and
// replaces the patient's identity with a pseudonymous ID.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		xraydeid "github.com/menta2k/xray-deid"
//	)
//
//	func main() {
//		engine, err := xraydeid.NewRecognizer(xraydeid.RecognizerConfig{Backend: "ollama"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		d, err := xraydeid.New(engine)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		rec, err := d.DeidentifyFile(context.Background(), "scan.png", "clean/scan.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(rec.PatientID, rec.XrayDateTime, rec.Gender)
//	}
//
// Each frame goes through five stages:
//
// 1. Mask (pkg/mask): project every pixel onto the overlay colour and refine the projection
// 2. Remove (pkg/removal): inpaint or blank the text region
// 3. Crop (pkg/cropper): keep the largest foreground region
// 4. Read (pkg/ocr): OCR three renderings of the text independently
// 5. Vote and hash (pkg/consensus, pkg/anonymize): edit-distance median per field, then SHA-256
//
// Batch runs over a directory tree, the record table and the CLI live in
// pkg/pipeline, pkg/output and cmd/xray-deid.
package xraydeid

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/xray-deid/internal/utils"
	"github.com/menta2k/xray-deid/pkg/client"
	"github.com/menta2k/xray-deid/pkg/llamacpp"
	"github.com/menta2k/xray-deid/pkg/ocr"
	"github.com/menta2k/xray-deid/pkg/ollama"
	"github.com/menta2k/xray-deid/pkg/pipeline"
	"github.com/menta2k/xray-deid/pkg/processing"
	"github.com/menta2k/xray-deid/pkg/types"
)

// Version of the x-ray de-identification library
const Version = "1.0.0"

// Deidentifier provides a high-level interface for cleaning single images
type Deidentifier struct {
	processor  *pipeline.Processor
	identifier *pipeline.Identifier
	images     *processing.Processor
}

// New creates a Deidentifier with default settings (inpainting) reading text with engine
func New(engine client.TextRecognizer) (*Deidentifier, error) {
	return NewWithConfig(pipeline.DefaultOptions(), engine, nil)
}

// NewWithConfig creates a Deidentifier with custom stage options and layout.
// A nil layout uses ocr.DefaultLayout.
func NewWithConfig(opts pipeline.Options, engine client.TextRecognizer, layout ocr.Layout) (*Deidentifier, error) {
	if engine == nil {
		return nil, fmt.Errorf("a text recognizer is required")
	}
	p, err := pipeline.NewProcessor(opts)
	if err != nil {
		return nil, err
	}
	return &Deidentifier{
		processor:  p,
		identifier: pipeline.NewIdentifier(ocr.NewReader(engine, layout)),
		images:     processing.NewProcessor(),
	}, nil
}

// RecognizerConfig selects an OCR backend
type RecognizerConfig struct {
	// Backend is tesseract, ollama or llamacpp
	Backend     string
	Languages   []string
	PageSegMode int
	Model       string
	URL         string
	// APIKey is sent to llama.cpp servers started with --api-key
	APIKey string
}

// NewRecognizer builds the text recognizer for cfg.Backend
func NewRecognizer(cfg RecognizerConfig) (client.TextRecognizer, error) {
	switch cfg.Backend {
	case "", "tesseract":
		t, err := ocr.NewTesseract(cfg.Languages, cfg.PageSegMode)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "ollama":
		r, err := ollama.NewRecognizer(cfg.URL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "llamacpp":
		r, err := llamacpp.NewRecognizer(cfg.URL, cfg.Model, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend: %s (use tesseract, ollama or llamacpp)", cfg.Backend)
	}
}

// LoadImage loads an image from file
func (d *Deidentifier) LoadImage(path string) (image.Image, error) {
	return d.images.LoadImage(path)
}

// SaveImage saves an image, choosing the format from the extension
func (d *Deidentifier) SaveImage(img image.Image, path string) error {
	return d.images.SaveImage(img, path, "")
}

// CleanImage removes the burned-in text from img and crops it to the
// clinical region. No OCR is performed.
func (d *Deidentifier) CleanImage(img image.Image) (*pipeline.Result, error) {
	if err := d.images.ValidateImage(img); err != nil {
		return nil, err
	}
	return d.processor.Clean(img)
}

// DeidentifyImage cleans img and reads the identity from its label
func (d *Deidentifier) DeidentifyImage(ctx context.Context, img image.Image) (image.Image, pipeline.Identity, error) {
	res, err := d.CleanImage(img)
	if err != nil {
		return nil, pipeline.Identity{}, err
	}
	ident, err := d.identifier.Identify(ctx, res.Variants)
	if err != nil {
		return nil, pipeline.Identity{}, err
	}
	return res.Cropped, ident, nil
}

// DeidentifyFile cleans the image at inputPath, writes the result to
// outputPath and returns its record
func (d *Deidentifier) DeidentifyFile(ctx context.Context, inputPath, outputPath string) (types.PatientRecord, error) {
	img, err := d.LoadImage(inputPath)
	if err != nil {
		return types.PatientRecord{}, fmt.Errorf("failed to load image: %w", err)
	}

	cleaned, ident, err := d.DeidentifyImage(ctx, img)
	if err != nil {
		return types.PatientRecord{}, fmt.Errorf("%s: %w", inputPath, err)
	}

	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return types.PatientRecord{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := d.SaveImage(cleaned, outputPath); err != nil {
		return types.PatientRecord{}, fmt.Errorf("failed to save image: %w", err)
	}

	return types.PatientRecord{
		PatientID:    ident.PatientID,
		XrayDateTime: ident.Fields.DateTime,
		Gender:       ident.Fields.Gender,
		Path:         outputPath,
	}, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
