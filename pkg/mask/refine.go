package mask

import (
	"image"
)

// Refine derives the structural, tight and dilated masks from a projection.
// The projection itself is not modified.
func (m *Masker) Refine(projection *image.Gray) Variants {
	p := m.params

	structural := Clone(projection)
	for i, v := range structural.Pix {
		switch {
		case v > p.GrayBandLow && v < p.GrayBandHigh:
			structural.Pix[i] = 0
		case v > 0:
			structural.Pix[i] = 255
		}
	}
	structural = Close(structural, Ellipse(p.StructuralKernel, p.StructuralKernel), 1)

	textKernel := Ellipse(p.TextKernel, p.TextKernel)
	tight := Threshold(projection, p.TightThreshold)
	tight = Binarize(Close(tight, textKernel, 1))

	dilated := Dilate(tight, textKernel, 1)
	dilated = Open(dilated, textKernel, 1)

	return Variants{
		Projection:  projection,
		Structural:  structural,
		TightText:   tight,
		DilatedText: dilated,
	}
}
