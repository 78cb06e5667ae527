// Package removal erases burned-in text from an image given the structural
// text mask. Two interchangeable strategies are provided: inpainting, which
// reconstructs the covered pixels from their surroundings, and masking, which
// blanks a generously grown version of the mask to black.
package removal

import (
	"fmt"
	"image"

	"github.com/menta2k/xray-deid/pkg/types"
)

// Remover erases the text covered by structural from img.
// The returned image has the same size as img; img is not modified.
type Remover interface {
	Name() string
	Remove(img image.Image, structural *image.Gray) (*image.NRGBA, error)
}

// Config holds the tunables of both strategies
type Config struct {
	// InpaintRadius is the neighbourhood considered for each reconstructed pixel
	InpaintRadius int
	// HideKernel and HideIterations grow the mask before blanking
	HideKernel     int
	HideIterations int
}

// DefaultConfig returns the standard removal settings
func DefaultConfig() Config {
	return Config{
		InpaintRadius:  3,
		HideKernel:     5,
		HideIterations: 2,
	}
}

// New returns the strategy for mode
func New(mode types.ProcessingMode, cfg Config) (Remover, error) {
	switch mode {
	case types.ModeInpaint:
		return &Inpainter{radius: cfg.InpaintRadius}, nil
	case types.ModeMask:
		return &Blanker{kernel: cfg.HideKernel, iterations: cfg.HideIterations}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidProcessingMode, mode)
	}
}

func checkSize(img image.Image, m *image.Gray) error {
	ib, mb := img.Bounds(), m.Bounds()
	if ib.Dx() != mb.Dx() || ib.Dy() != mb.Dy() {
		return fmt.Errorf("mask is %dx%d but image is %dx%d", mb.Dx(), mb.Dy(), ib.Dx(), ib.Dy())
	}
	return nil
}
