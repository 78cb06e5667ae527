//go:build gocv

package removal

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Backend names the inpainting implementation compiled in
const Backend = "opencv-ns"

// inpaint runs OpenCV's Navier-Stokes inpainting
func inpaint(img *image.NRGBA, m *image.Gray, radius int) (*image.NRGBA, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image to mat: %w", err)
	}
	defer src.Close()

	msk, err := gocv.ImageGrayToMatGray(m)
	if err != nil {
		return nil, fmt.Errorf("convert mask to mat: %w", err)
	}
	defer msk.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Inpaint(src, msk, &dst, float32(radius), gocv.NS)

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mat to image: %w", err)
	}
	return imaging.Clone(out), nil
}
