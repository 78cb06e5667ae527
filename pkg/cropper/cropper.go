// Package cropper locates the clinical image inside a de-texted frame and crops
// to it. The frame is thresholded into foreground and background and the
// region whose boundary encloses the largest area wins; residual noise and
// partially erased labels are always smaller than the radiograph itself.
// Regions are ranked by enclosed area, not lit pixels, so a radiograph with a
// dark interior still beats a small solid artifact.
package cropper

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/xray-deid/pkg/types"
)

// ErrNoForeground is returned when no pixel passes the foreground threshold
var ErrNoForeground = errors.New("no foreground region found")

// RegionExtractor finds and crops the largest foreground region
type RegionExtractor struct {
	config CropConfig
}

// CropConfig holds configuration for region extraction
type CropConfig struct {
	// ForegroundThreshold is the channel value a pixel must exceed on any
	// channel to count as foreground
	ForegroundThreshold uint8
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image image.Image
	Box   types.BoundingBox
	// Area is the polygon area enclosed by the selected region's boundary,
	// measured through pixel centres
	Area float64
	// Regions is the number of boundaries considered
	Regions int
}

// New creates a new RegionExtractor with default configuration
func New() *RegionExtractor {
	return &RegionExtractor{
		config: CropConfig{
			ForegroundThreshold: 15,
		},
	}
}

// NewWithConfig creates a new RegionExtractor with custom configuration
func NewWithConfig(config CropConfig) *RegionExtractor {
	return &RegionExtractor{config: config}
}

// Config returns the extractor configuration
func (c *RegionExtractor) Config() CropConfig {
	return c.config
}

// Foreground binarizes img: 255 where any colour channel exceeds the
// threshold, 0 elsewhere. The result has its origin at (0,0).
func (c *RegionExtractor) Foreground(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	th := c.config.ForegroundThreshold

	bin := image.NewNRGBA(b)
	for y := 0; y < b.Dy(); y++ {
		si := y * src.Stride
		for x := 0; x < b.Dx(); x++ {
			var v uint8
			if src.Pix[si] > th || src.Pix[si+1] > th || src.Pix[si+2] > th {
				v = 255
			}
			bin.Pix[si], bin.Pix[si+1], bin.Pix[si+2], bin.Pix[si+3] = v, v, v, 255
			si += 4
		}
	}

	gray := imaging.Grayscale(bin)
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		gi := y * gray.Stride
		for x := 0; x < b.Dx(); x++ {
			if gray.Pix[gi] > 0 {
				out.Pix[y*out.Stride+x] = 255
			}
			gi += 4
		}
	}
	return out
}

// Extract crops img to its largest foreground region
func (c *RegionExtractor) Extract(img image.Image) (CropResult, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions: %w", ErrNoForeground)
	}

	box, area, regions, err := LargestRegion(c.Foreground(img))
	if err != nil {
		return CropResult{}, err
	}

	return CropResult{
		Image:   CropImageToBox(img, box),
		Box:     box,
		Area:    area,
		Regions: regions,
	}, nil
}

// CropImageToBox crops img to box, interpreted relative to the image origin
func CropImageToBox(img image.Image, box types.BoundingBox) *image.NRGBA {
	r := box.Rect().Add(img.Bounds().Min)
	return imaging.Crop(img, r)
}

// croppedImage is a zero-copy view of a sub-rectangle of another image
type croppedImage struct {
	original image.Image
	bounds   image.Rectangle
}

// View returns a zero-copy view of img restricted to box
func View(img image.Image, box types.BoundingBox) image.Image {
	return &croppedImage{
		original: img,
		bounds:   box.Rect().Add(img.Bounds().Min).Intersect(img.Bounds()),
	}
}

func (c *croppedImage) ColorModel() color.Model {
	return c.original.ColorModel()
}

func (c *croppedImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.bounds.Dx(), c.bounds.Dy())
}

func (c *croppedImage) At(x, y int) color.Color {
	pt := image.Point{x, y}
	if !pt.In(c.Bounds()) {
		return color.RGBA{}
	}
	return c.original.At(x+c.bounds.Min.X, y+c.bounds.Min.Y)
}
