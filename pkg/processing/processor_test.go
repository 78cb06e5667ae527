package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/xray-deid/pkg/types"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	return img
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(32, 24)

	for _, name := range []string{"a.png", "b.jpg", "c.webp", "d.bmp", "e.tiff"} {
		path := filepath.Join(dir, name)
		if err := p.SaveImage(img, path, ""); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", name, err)
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", name, err)
		}
		if loaded.Bounds().Dx() != 32 || loaded.Bounds().Dy() != 24 {
			t.Errorf("%s: expected 32x24, got %v", name, loaded.Bounds())
		}
	}
}

func TestSaveUnknownFormatFallsBackToPNG(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "scan.xyz")
	if err := p.SaveImage(createTestImage(4, 4), path, ""); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "scan.png")); err != nil {
		t.Errorf("Expected png fallback file: %v", err)
	}
}

func TestLoadImageErrors(t *testing.T) {
	p := NewProcessor()
	if _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "garbage.png")
	os.WriteFile(path, []byte("not an image"), 0644)
	if _, err := p.LoadImage(path); err == nil {
		t.Error("Expected error for undecodable file")
	}
}

func TestEncodePNG(t *testing.T) {
	p := NewProcessor()
	data, err := p.EncodePNG(createTestImage(10, 10))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a png: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("Expected width 10, got %d", img.Bounds().Dx())
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(200, 100), "png", 50)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 25 {
		t.Errorf("Expected 50x25 after resize, got %v", img.Bounds())
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessor()
	if err := p.ValidateImage(nil); err == nil {
		t.Error("Expected error for nil image")
	}
	if err := p.ValidateImage(image.NewRGBA(image.Rect(0, 0, 0, 5))); err == nil {
		t.Error("Expected error for empty image")
	}
	if err := p.ValidateImage(createTestImage(1, 1)); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFormatAndOutputPath(t *testing.T) {
	tests := []struct {
		path, format, wantFormat, wantPath string
	}{
		{"a/b.JPEG", "", "jpg", "a/b.JPEG"},
		{"a/b.tif", "png", "tiff", "a/b.png"},
		{"a/b.png", "png", "png", "a/b.png"},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.wantFormat {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.wantFormat)
		}
		if got := OutputPath(tt.path, tt.format); got != tt.wantPath {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.path, tt.format, got, tt.wantPath)
		}
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	m := image.NewGray(img.Bounds())
	m.SetGray(20, 20, color.Gray{255})

	out := p.CreateDebugOverlay(img, m, types.BoundingBox{XMin: 5, YMin: 5, XMax: 30, YMax: 30})

	r, g, _, _ := out.At(5, 10).RGBA()
	if r>>8 != 255 || g>>8 != 204 {
		t.Errorf("Expected crop box stroke at (5,10), got r=%d g=%d", r>>8, g>>8)
	}
	r, _, _, _ = out.At(20, 20).RGBA()
	if r>>8 != 255 {
		t.Error("Expected text mask tint at (20,20)")
	}
	r, _, _, _ = out.At(15, 15).RGBA()
	if r != 0 {
		t.Error("Expected untouched pixel inside the box")
	}
}

func TestCreateDebugOverlayTransparentInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	m := image.NewGray(img.Bounds())
	m.SetGray(4, 4, color.Gray{255})

	out := NewProcessor().CreateDebugOverlay(img, m, types.BoundingBox{})

	r, _, _, a := out.At(4, 4).RGBA()
	if a>>8 != 255 || r>>8 != 255 {
		t.Errorf("Expected opaque red tint at (4,4), got r=%d a=%d", r>>8, a>>8)
	}
	if _, _, _, a = out.At(0, 0).RGBA(); a != 0 {
		t.Error("Expected untinted pixels to keep their alpha")
	}
}
