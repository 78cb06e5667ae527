//go:build gocv

package cropper

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/menta2k/xray-deid/pkg/types"
)

// LargestRegion returns the bounding box and area of the contour of fg that
// encloses the most area, plus the number of contours. Every contour is
// considered, holes included; on equal areas the first contour wins.
func LargestRegion(fg *image.Gray) (types.BoundingBox, float64, int, error) {
	src, err := gocv.ImageGrayToMatGray(fg)
	if err != nil {
		return types.BoundingBox{}, 0, 0, fmt.Errorf("convert foreground to mat: %w", err)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return types.BoundingBox{}, 0, 0, ErrNoForeground
	}

	var best image.Rectangle
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if area := gocv.ContourArea(contour); area > bestArea {
			best, bestArea = gocv.BoundingRect(contour), area
		}
	}

	return types.BoundingBox{
		XMin: best.Min.X,
		YMin: best.Min.Y,
		XMax: best.Max.X,
		YMax: best.Max.Y,
	}, bestArea, contours.Size(), nil
}
