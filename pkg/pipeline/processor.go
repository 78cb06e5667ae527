// Package pipeline wires masking, text removal, cropping, OCR and voting into
// the per-image de-identification flow and runs it over many images.
package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/xray-deid/pkg/cropper"
	"github.com/menta2k/xray-deid/pkg/mask"
	"github.com/menta2k/xray-deid/pkg/removal"
	"github.com/menta2k/xray-deid/pkg/types"
)

// ErrTextRemoval wraps failures of the removal strategy
var ErrTextRemoval = errors.New("text removal failed")

// Names of the OCR input renderings, in submission order
const (
	VariantTextOnly    = "text_only"
	VariantTightMask   = "tight_mask"
	VariantDilatedMask = "dilated_mask"
)

// Options configures the image stages
type Options struct {
	Mode    types.ProcessingMode
	Mask    mask.Params
	Removal removal.Config
	Crop    cropper.CropConfig
}

// DefaultOptions returns inpainting with default constants
func DefaultOptions() Options {
	return Options{
		Mode:    types.ModeInpaint,
		Mask:    mask.DefaultParams(),
		Removal: removal.DefaultConfig(),
		Crop:    cropper.New().Config(),
	}
}

// Variant is one rendering of the frame handed to OCR
type Variant struct {
	Name  string
	Image image.Image
}

// Result holds everything derived from one frame
type Result struct {
	// Cropped is the de-texted frame cut to the clinical region
	Cropped  image.Image
	Box      types.BoundingBox
	Masks    mask.Variants
	Detexted *image.NRGBA
	TextOnly *image.NRGBA
	// Variants are the three independent OCR inputs
	Variants []Variant
}

// Processor runs the image stages of one frame. It holds no per-image state
// and is safe for concurrent use.
type Processor struct {
	masker    *mask.Masker
	remover   removal.Remover
	extractor *cropper.RegionExtractor
}

// NewProcessor validates opts and builds the stages. An unknown mode yields
// types.ErrInvalidProcessingMode.
func NewProcessor(opts Options) (*Processor, error) {
	remover, err := removal.New(opts.Mode, opts.Removal)
	if err != nil {
		return nil, err
	}
	return &Processor{
		masker:    mask.NewWithConfig(opts.Mask),
		remover:   remover,
		extractor: cropper.NewWithConfig(opts.Crop),
	}, nil
}

// Strategy names the removal strategy in use
func (p *Processor) Strategy() string {
	return p.remover.Name()
}

// Clean masks, de-texts and crops img and renders the OCR variants.
// A frame without foreground after text removal returns cropper.ErrNoForeground.
func (p *Processor) Clean(img image.Image) (*Result, error) {
	masks := p.masker.Compute(img)

	detexted, err := p.remover.Remove(img, masks.Structural)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTextRemoval, err)
	}

	crop, err := p.extractor.Extract(detexted)
	if err != nil {
		return nil, err
	}

	textOnly := mask.IsolateText(img, masks.TightText)

	return &Result{
		Cropped:  crop.Image,
		Box:      crop.Box,
		Masks:    masks,
		Detexted: detexted,
		TextOnly: textOnly,
		Variants: []Variant{
			{Name: VariantTextOnly, Image: textOnly},
			{Name: VariantTightMask, Image: masks.TightText},
			{Name: VariantDilatedMask, Image: masks.DilatedText},
		},
	}, nil
}
