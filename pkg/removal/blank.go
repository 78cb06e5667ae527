package removal

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/xray-deid/pkg/mask"
)

// Blanker zeroes every pixel under a dilated copy of the mask. Dilation makes
// sure glyph edges are covered even where the mask is slightly short.
type Blanker struct {
	kernel     int
	iterations int
}

// Name returns the processing mode this strategy implements
func (b *Blanker) Name() string {
	return "mask"
}

// HideMask returns the grown, inverted mask that Remove multiplies with:
// 255 keeps a pixel, 0 blanks it.
func (b *Blanker) HideMask(structural *image.Gray) *image.Gray {
	grown := mask.Dilate(structural, mask.Ellipse(b.kernel, b.kernel), b.iterations)
	keep := mask.Invert(grown)
	// only fully uncovered pixels survive
	for i, v := range keep.Pix {
		if v != 255 {
			keep.Pix[i] = 0
		}
	}
	return keep
}

// Remove blanks the text region of img
func (b *Blanker) Remove(img image.Image, structural *image.Gray) (*image.NRGBA, error) {
	if err := checkSize(img, structural); err != nil {
		return nil, err
	}
	out := imaging.Clone(img)
	mask.MultiplyRGB(out, b.HideMask(structural))
	return out, nil
}
