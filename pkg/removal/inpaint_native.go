//go:build !gocv

package removal

import "image"

// Backend names the inpainting implementation compiled in
const Backend = "diffusion"

func inpaint(img *image.NRGBA, m *image.Gray, radius int) (*image.NRGBA, error) {
	return Diffuse(img, m, radius), nil
}
