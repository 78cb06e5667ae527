package removal

import (
	"image"

	"github.com/disintegration/imaging"
)

// Inpainter reconstructs the masked region from the surrounding pixels
type Inpainter struct {
	radius int
}

// Name returns the processing mode this strategy implements
func (p *Inpainter) Name() string {
	return "inpaint"
}

// Remove fills every non-zero mask pixel of img
func (p *Inpainter) Remove(img image.Image, structural *image.Gray) (*image.NRGBA, error) {
	if err := checkSize(img, structural); err != nil {
		return nil, err
	}
	return inpaint(imaging.Clone(img), structural, max(p.radius, 1))
}
