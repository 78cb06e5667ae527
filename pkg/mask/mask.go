// Package mask isolates burned-in text by colour.
//
// Every pixel is compared with a fixed reference colour via cosine
// similarity, producing a projection mask in [0,255]. The projection is then
// refined with thresholds and morphology into three variants:
//
//   - Structural: generous, closed blobs that cover the whole text block,
//     used as the region to inpaint or blank.
//   - TightText: only near-exact colour matches, used for OCR.
//   - DilatedText: TightText grown by a small margin and cleaned of specks.
//
// All tunable values live in Params so the pipeline can be retuned for a
// different overlay colour in one place.
package mask

import (
	"image"
)

// Params holds every constant of the colour masking stage
type Params struct {
	// ReferenceColor is the RGB colour of the burned-in text
	ReferenceColor [3]float64
	// Epsilon replaces a zero pixel norm to keep the division finite
	Epsilon float64
	// Projection values strictly between GrayBandLow and GrayBandHigh are
	// neutral tones and are dropped from the structural mask
	GrayBandLow  uint8
	GrayBandHigh uint8
	// TightThreshold is the smallest projection value counted as exact text colour
	TightThreshold uint8
	// StructuralKernel is the ellipse size used to close the structural mask
	StructuralKernel int
	// TextKernel is the ellipse size used on the tight and dilated masks
	TextKernel int
}

// DefaultParams returns the values tuned for yellow overlay text
func DefaultParams() Params {
	return Params{
		ReferenceColor:   [3]float64{255, 245, 149},
		Epsilon:          0.001,
		GrayBandLow:      245,
		GrayBandHigh:     250,
		TightThreshold:   254,
		StructuralKernel: 5,
		TextKernel:       2,
	}
}

// Variants are the masks derived from one projection
type Variants struct {
	Projection  *image.Gray
	Structural  *image.Gray
	TightText   *image.Gray
	DilatedText *image.Gray
}

// Masker computes projection masks and their refined variants
type Masker struct {
	params Params
}

// New creates a Masker with default parameters
func New() *Masker {
	return &Masker{params: DefaultParams()}
}

// NewWithConfig creates a Masker with custom parameters
func NewWithConfig(params Params) *Masker {
	return &Masker{params: params}
}

// Params returns the parameters in use
func (m *Masker) Params() Params {
	return m.params
}

// Compute projects img onto the reference colour and refines the result
func (m *Masker) Compute(img image.Image) Variants {
	return m.Refine(m.Project(img))
}
