package mask

import (
	"image"

	"github.com/disintegration/imaging"
)

// IsolateText keeps only the pixels of img selected by textMask, scaling each
// channel by mask/255, and paints everything else black. The result is meant
// for OCR, not for viewing.
func IsolateText(img image.Image, textMask *image.Gray) *image.NRGBA {
	dst := imaging.Clone(img)
	MultiplyRGB(dst, textMask)
	return dst
}

// MultiplyRGB scales the colour channels of dst in place by mask/255.
// Alpha is left untouched. If the sizes differ dst is left unchanged.
func MultiplyRGB(dst *image.NRGBA, mask *image.Gray) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	mb := mask.Bounds()
	if mb.Dx() != w || mb.Dy() != h {
		return
	}
	for y := 0; y < h; y++ {
		i := y * dst.Stride
		mi := y * mask.Stride
		for x := 0; x < w; x++ {
			f := uint32(mask.Pix[mi+x])
			dst.Pix[i] = uint8(uint32(dst.Pix[i]) * f / 255)
			dst.Pix[i+1] = uint8(uint32(dst.Pix[i+1]) * f / 255)
			dst.Pix[i+2] = uint8(uint32(dst.Pix[i+2]) * f / 255)
			i += 4
		}
	}
}
