package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/xray-deid/pkg/types"
)

// Processor handles image loading, encoding and saving
type Processor struct {
	quality int
}

// NewProcessor creates a new image processor with JPEG/WebP quality 95
func NewProcessor() *Processor {
	return &Processor{quality: 95}
}

// NewProcessorWithQuality creates a processor with a custom lossy quality
func NewProcessorWithQuality(quality int) *Processor {
	if quality < 1 || quality > 100 {
		quality = 95
	}
	return &Processor{quality: quality}
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ValidateImage rejects images that cannot hold a frame
func (p *Processor) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("image is nil")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return nil
}

// EncodePNG encodes img losslessly, the format OCR engines read most reliably
func (p *Processor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
			return "", err
		}
	default: // png
		data, err := p.EncodePNG(img)
		if err != nil {
			return "", err
		}
		buf.Write(data)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FormatFromPath returns the lower-case extension of path without the dot,
// normalizing jpeg to jpg and tif to tiff
func FormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	}
	return ext
}

// SaveImage saves an image to path. An empty format is taken from the path
// extension; formats without an encoder fall back to png.
func (p *Processor) SaveImage(img image.Image, path, format string) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: false, Quality: float32(p.quality)}
		return webp.Encode(f, img, opts)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(p.quality))
	case "png", "gif", "bmp", "tiff", "tif":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, strings.TrimSuffix(path, filepath.Ext(path))+".png")
	}
}

// OutputPath rewrites the extension of path to match format. An empty format
// leaves path unchanged.
func OutputPath(path, format string) string {
	if format == "" || FormatFromPath(path) == strings.ToLower(format) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + strings.ToLower(format)
}

// CreateDebugOverlay draws the crop box onto a copy of img and tints the
// text mask red so both can be checked at a glance. Tinted pixels are made
// opaque so the mask shows on transparent inputs too.
func (p *Processor) CreateDebugOverlay(img image.Image, textMask *image.Gray, cropBox types.BoundingBox) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	gold := color.NRGBA{255, 204, 0, 255}
	// about 0.4% of the shorter side
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	if textMask != nil && textMask.Bounds().Dx() == w && textMask.Bounds().Dy() == h {
		for y := 0; y < h; y++ {
			i := y * nrgba.Stride
			for x := 0; x < w; x++ {
				if textMask.Pix[y*textMask.Stride+x] > 0 {
					nrgba.Pix[i+0] = 255
					nrgba.Pix[i+1] /= 3
					nrgba.Pix[i+2] /= 3
					nrgba.Pix[i+3] = 255
				}
				i += 4
			}
		}
	}

	if cropBox.Width() > 0 && cropBox.Height() > 0 {
		drawBox(nrgba, cropBox, gold, stroke)
	}

	return nrgba
}

func drawBox(img *image.NRGBA, box types.BoundingBox, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := box.XMin, box.YMin, box.XMax, box.YMax
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
