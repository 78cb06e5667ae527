package cropper

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/xray-deid/pkg/types"
)

// createTestImage creates a black frame with a large gray plate and a small
// bright speck, like a de-texted radiograph with a leftover artifact
func createTestImage(width, height int) (image.Image, image.Rectangle) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	plate := image.Rect(width/3, height/8, width-width/10, height-height/8)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case image.Pt(x, y).In(plate):
				img.Set(x, y, color.RGBA{128, 128, 128, 255})
			case x >= 2 && x < 6 && y >= 2 && y < 6:
				img.Set(x, y, color.RGBA{200, 200, 200, 255})
			default:
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}

	return img, plate
}

func TestNew(t *testing.T) {
	cropper := New()
	if cropper == nil {
		t.Fatal("New() returned nil")
	}

	if cropper.Config().ForegroundThreshold != 15 {
		t.Errorf("Expected ForegroundThreshold 15, got %d", cropper.Config().ForegroundThreshold)
	}
}

func TestNewWithConfig(t *testing.T) {
	cropper := NewWithConfig(CropConfig{ForegroundThreshold: 40})
	if cropper.Config().ForegroundThreshold != 40 {
		t.Errorf("Expected ForegroundThreshold 40, got %d", cropper.Config().ForegroundThreshold)
	}
}

func TestExtractLargestRegion(t *testing.T) {
	img, plate := createTestImage(120, 80)
	result, err := New().Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Box.Rect() != plate {
		t.Errorf("Expected box %v, got %v", plate, result.Box.Rect())
	}
	if result.Regions != 2 {
		t.Errorf("Expected 2 regions, got %d", result.Regions)
	}
	// boundary runs through the outermost pixel centres
	if want := float64((plate.Dx() - 1) * (plate.Dy() - 1)); result.Area != want {
		t.Errorf("Expected area %v, got %v", want, result.Area)
	}

	bounds := result.Image.Bounds()
	if bounds.Dx() != plate.Dx() || bounds.Dy() != plate.Dy() {
		t.Errorf("Expected cropped size %dx%d, got %dx%d", plate.Dx(), plate.Dy(), bounds.Dx(), bounds.Dy())
	}
}

func TestExtractBoxInvariant(t *testing.T) {
	sizes := []struct{ w, h int }{{1, 1}, {7, 3}, {64, 64}, {100, 30}}
	for _, s := range sizes {
		img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
		for i := range img.Pix {
			img.Pix[i] = 255
		}
		result, err := New().Extract(img)
		if err != nil {
			t.Fatalf("%dx%d: Extract failed: %v", s.w, s.h, err)
		}
		b := result.Box
		if !(0 <= b.XMin && b.XMin < b.XMax && b.XMax <= s.w) || !(0 <= b.YMin && b.YMin < b.YMax && b.YMax <= s.h) {
			t.Errorf("%dx%d: box %+v out of range", s.w, s.h, b)
		}
	}
}

func TestExtractNoForeground(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{15, 15, 15, 255})
		}
	}
	_, err := New().Extract(img)
	if !errors.Is(err, ErrNoForeground) {
		t.Errorf("Expected ErrNoForeground, got %v", err)
	}
}

func TestForegroundAnyChannel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{0, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 0, 16, 255})
	img.Set(2, 0, color.RGBA{15, 15, 15, 255})

	fg := New().Foreground(img)
	want := []uint8{0, 255, 0}
	for x, v := range want {
		if fg.GrayAt(x, 0).Y != v {
			t.Errorf("pixel %d: expected %d, got %d", x, v, fg.GrayAt(x, 0).Y)
		}
	}
}

func TestExtractOutlineBeatsSolidBlock(t *testing.T) {
	// a lit border around a dark interior, like a radiograph whose clinical
	// content falls under the threshold, next to a brighter solid artifact
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	outline := image.Rect(10, 10, 150, 150)
	block := image.Rect(160, 160, 190, 190)
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			p := image.Pt(x, y)
			onBorder := p.In(outline) && (x == outline.Min.X || x == outline.Max.X-1 || y == outline.Min.Y || y == outline.Max.Y-1)
			switch {
			case onBorder, p.In(block):
				img.Set(x, y, color.RGBA{200, 200, 200, 255})
			case p.In(outline):
				img.Set(x, y, color.RGBA{10, 10, 10, 255})
			default:
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}

	result, err := New().Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Box.Rect() != outline {
		t.Errorf("Expected outline box %v, got %v (area %v)", outline, result.Box.Rect(), result.Area)
	}
	if result.Area != 139*139 {
		t.Errorf("Expected enclosed area %d, got %v", 139*139, result.Area)
	}
}

func TestCropOffsetOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 30, 30))
	for y := 15; y < 20; y++ {
		for x := 12; x < 22; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	result, err := New().Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Box.Rect() != image.Rect(2, 5, 12, 10) {
		t.Errorf("Expected box relative to origin, got %v", result.Box.Rect())
	}
	if result.Image.Bounds().Dx() != 10 || result.Image.Bounds().Dy() != 5 {
		t.Errorf("Unexpected crop size %v", result.Image.Bounds())
	}
}

func TestView(t *testing.T) {
	img, plate := createTestImage(60, 40)
	v := View(img, types.BoundingBox{XMin: plate.Min.X, YMin: plate.Min.Y, XMax: plate.Max.X, YMax: plate.Max.Y})

	if v.Bounds().Dx() != plate.Dx() || v.Bounds().Dy() != plate.Dy() {
		t.Errorf("Unexpected view size %v", v.Bounds())
	}
	r, _, _, _ := v.At(0, 0).RGBA()
	if r>>8 != 128 {
		t.Errorf("Expected plate colour at view origin, got %d", r>>8)
	}
	r, _, _, _ = v.At(-1, 0).RGBA()
	if r != 0 {
		t.Error("Expected zero colour outside the view")
	}
}

func BenchmarkExtract(b *testing.B) {
	img, _ := createTestImage(800, 600)
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Extract(img)
	}
}
