//go:build gocv

package mask

import (
	"image"

	"gocv.io/x/gocv"
)

type morphFunc func(src gocv.Mat, dst *gocv.Mat, kernel gocv.Mat)

// morph applies op to src iterations times with OpenCV. If the image cannot
// cross into OpenCV, pass runs the same operation once in pure Go instead.
func morph(src *image.Gray, k Kernel, iterations int, op morphFunc, pass func(*image.Gray) *image.Gray) *image.Gray {
	in, err := gocv.ImageGrayToMatGray(Clone(src))
	if err != nil {
		return repeat(src, iterations, pass)
	}
	defer in.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k.Width, k.Height))
	defer kernel.Close()

	cur := in.Clone()
	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		op(cur, &next, kernel)
		cur.Close()
		cur = next
	}
	defer cur.Close()

	img, err := cur.ToImage()
	if err != nil {
		return repeat(src, iterations, pass)
	}
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	out := image.NewGray(img.Bounds())
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func repeat(src *image.Gray, iterations int, pass func(*image.Gray) *image.Gray) *image.Gray {
	out := src
	for i := 0; i < iterations; i++ {
		out = pass(out)
	}
	return out
}

func dilate(src *image.Gray, k Kernel, iterations int) *image.Gray {
	return morph(src, k, iterations, gocv.Dilate, func(g *image.Gray) *image.Gray {
		return apply(g, k, true)
	})
}

func erode(src *image.Gray, k Kernel, iterations int) *image.Gray {
	return morph(src, k, iterations, gocv.Erode, func(g *image.Gray) *image.Gray {
		return apply(g, k, false)
	})
}

// closing and opening with several iterations run every dilation before
// every erosion (or the reverse), which MorphologyEx only does for one.
func closing(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations > 1 {
		return erode(dilate(src, k, iterations), k, iterations)
	}
	return morph(src, k, 1, func(s gocv.Mat, d *gocv.Mat, kernel gocv.Mat) {
		gocv.MorphologyEx(s, d, gocv.MorphClose, kernel)
	}, func(g *image.Gray) *image.Gray {
		return apply(apply(g, k, true), k, false)
	})
}

func opening(src *image.Gray, k Kernel, iterations int) *image.Gray {
	if iterations > 1 {
		return dilate(erode(src, k, iterations), k, iterations)
	}
	return morph(src, k, 1, func(s gocv.Mat, d *gocv.Mat, kernel gocv.Mat) {
		gocv.MorphologyEx(s, d, gocv.MorphOpen, kernel)
	}, func(g *image.Gray) *image.Gray {
		return apply(apply(g, k, false), k, true)
	})
}
