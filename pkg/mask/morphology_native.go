//go:build !gocv

package mask

import "image"

func dilate(src *image.Gray, k Kernel, iterations int) *image.Gray {
	out := src
	for i := 0; i < iterations; i++ {
		out = apply(out, k, true)
	}
	return out
}

func erode(src *image.Gray, k Kernel, iterations int) *image.Gray {
	out := src
	for i := 0; i < iterations; i++ {
		out = apply(out, k, false)
	}
	return out
}

func closing(src *image.Gray, k Kernel, iterations int) *image.Gray {
	return erode(dilate(src, k, iterations), k, iterations)
}

func opening(src *image.Gray, k Kernel, iterations int) *image.Gray {
	return dilate(erode(src, k, iterations), k, iterations)
}
