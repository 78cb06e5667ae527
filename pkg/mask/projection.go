package mask

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Project returns, for every pixel, the cosine similarity between its RGB
// vector and the reference colour scaled to [0,255].
func (m *Masker) Project(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	ref := m.params.ReferenceColor
	refNorm := math.Sqrt(ref[0]*ref[0] + ref[1]*ref[1] + ref[2]*ref[2])
	if refNorm == 0 {
		return dst
	}

	for y := 0; y < h; y++ {
		i := y * src.Stride
		o := y * dst.Stride
		for x := 0; x < w; x++ {
			r := float64(src.Pix[i])
			g := float64(src.Pix[i+1])
			bl := float64(src.Pix[i+2])
			dst.Pix[o+x] = m.similarity(r, g, bl, refNorm)
			i += 4
		}
	}
	return dst
}

func (m *Masker) similarity(r, g, b, refNorm float64) uint8 {
	ref := m.params.ReferenceColor
	norm := math.Sqrt(r*r + g*g + b*b)
	if norm == 0 {
		norm = m.params.Epsilon
	}
	return toByte((ref[0]*r + ref[1]*g + ref[2]*b) / (norm * refNorm) * 255)
}

// roundingSlack absorbs float error so an exact colour match scores 255
const roundingSlack = 1e-9

// toByte truncates v into [0,255]. Band edges sit on whole numbers, so
// 249.6 is 249 and falls inside a 245-250 band.
func toByte(v float64) uint8 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= 255-roundingSlack {
		return 255
	}
	return uint8(v + roundingSlack)
}
