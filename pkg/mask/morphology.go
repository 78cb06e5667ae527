package mask

import (
	"image"
	"math"
)

// Kernel is a binary structuring element anchored at its centre
type Kernel struct {
	Width   int
	Height  int
	offsets []image.Point
}

// Ellipse builds an elliptical structuring element of the given size using
// the same construction as OpenCV's MORPH_ELLIPSE, so a 5x5 kernel has zero
// corners and a 2x2 kernel has its top-left cell cleared.
func Ellipse(width, height int) Kernel {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	r := height / 2
	c := width / 2
	invR2 := 0.0
	if r > 0 {
		invR2 = 1.0 / float64(r*r)
	}

	k := Kernel{Width: width, Height: height}
	for i := 0; i < height; i++ {
		j1, j2 := 0, 0
		dy := i - r
		if abs(dy) <= r {
			dx := int(math.Round(float64(c) * math.Sqrt(float64(r*r-dy*dy)*invR2)))
			j1 = max(c-dx, 0)
			j2 = min(c+dx+1, width)
		}
		for j := j1; j < j2; j++ {
			k.offsets = append(k.offsets, image.Pt(j-c, i-r))
		}
	}
	return k
}

// Contains reports whether the element is set at column x, row y
func (k Kernel) Contains(x, y int) bool {
	p := image.Pt(x-k.Width/2, y-k.Height/2)
	for _, o := range k.offsets {
		if o == p {
			return true
		}
	}
	return false
}

// Dilate replaces every pixel with the maximum under the kernel, repeated
// iterations times. Pixels outside the image are ignored. Zero or fewer
// iterations return an unchanged copy.
func Dilate(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations < 1 {
		return Clone(src)
	}
	return dilate(src, k, iterations)
}

// Erode replaces every pixel with the minimum under the kernel, repeated
// iterations times. Pixels outside the image are ignored. Zero or fewer
// iterations return an unchanged copy.
func Erode(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations < 1 {
		return Clone(src)
	}
	return erode(src, k, iterations)
}

// Close is dilation followed by erosion; it fills gaps narrower than the kernel.
func Close(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations < 1 {
		return Clone(src)
	}
	return closing(src, k, iterations)
}

// Open is erosion followed by dilation; it removes specks smaller than the kernel.
func Open(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations < 1 {
		return Clone(src)
	}
	return opening(src, k, iterations)
}

// apply runs one dilation (grow) or erosion pass over src
func apply(src *image.Gray, k Kernel, grow bool) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)

	for y := 0; y < h; y++ {
		row := y * dst.Stride
		for x := 0; x < w; x++ {
			var acc uint8
			if !grow {
				acc = 255
			}
			seen := false
			for _, o := range k.offsets {
				sx, sy := x+o.X, y+o.Y
				if sx < 0 || sy < 0 || sx >= w || sy >= h {
					continue
				}
				v := src.Pix[sy*src.Stride+sx]
				if grow {
					if v > acc {
						acc = v
					}
				} else if v < acc {
					acc = v
				}
				seen = true
			}
			if !seen {
				acc = src.Pix[y*src.Stride+x]
			}
			dst.Pix[row+x] = acc
		}
	}
	return dst
}

// Threshold zeroes every value below lo and leaves the rest unchanged
func Threshold(src *image.Gray, lo uint8) *image.Gray {
	dst := Clone(src)
	for i, v := range dst.Pix {
		if v < lo {
			dst.Pix[i] = 0
		}
	}
	return dst
}

// Binarize sets every non-zero value to 255
func Binarize(src *image.Gray) *image.Gray {
	dst := Clone(src)
	for i, v := range dst.Pix {
		if v > 0 {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// Invert maps v to 255-v
func Invert(src *image.Gray) *image.Gray {
	dst := Clone(src)
	for i, v := range dst.Pix {
		dst.Pix[i] = 255 - v
	}
	return dst
}

// Clone returns a deep copy of src rebased at the origin
func Clone(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
