package xraydeid

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/xray-deid/pkg/anonymize"
	"github.com/menta2k/xray-deid/pkg/client"
	"github.com/menta2k/xray-deid/pkg/ocr"
	"github.com/menta2k/xray-deid/pkg/pipeline"
	"github.com/menta2k/xray-deid/pkg/types"
)

type fixedEngine string

func (f fixedEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	return string(f), nil
}

// createTestImage creates a gray plate on black with a yellow label
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	plate := image.Rect(width/3, height/8, width-width/10, height-height/8)
	label := image.Rect(5, 5, width/4, height/4)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch p := image.Pt(x, y); {
			case p.In(label):
				img.Set(x, y, color.RGBA{255, 245, 149, 255})
			case p.In(plate):
				img.Set(x, y, color.RGBA{128, 128, 128, 255})
			default:
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	d, err := New(fixedEngine(""))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.processor.Strategy() != "inpaint" {
		t.Errorf("Expected inpaint by default, got %s", d.processor.Strategy())
	}

	if _, err := New(nil); err == nil {
		t.Error("Expected error without a recognizer")
	}
}

func TestNewWithConfigInvalidMode(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Mode = "smudge"
	if _, err := NewWithConfig(opts, fixedEngine(""), nil); !errors.Is(err, types.ErrInvalidProcessingMode) {
		t.Errorf("Expected ErrInvalidProcessingMode, got %v", err)
	}
}

func TestCleanImage(t *testing.T) {
	d, _ := New(fixedEngine(""))
	res, err := d.CleanImage(createTestImage(120, 80))
	if err != nil {
		t.Fatalf("CleanImage failed: %v", err)
	}
	if res.Box.Rect() != image.Rect(40, 10, 108, 70) {
		t.Errorf("Unexpected crop %v", res.Box.Rect())
	}

	if _, err := d.CleanImage(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("Expected error for an empty image")
	}
}

func TestDeidentifyFile(t *testing.T) {
	dir := t.TempDir()
	d, _ := New(fixedEngine("JANE ROE\nX\n02.03.1975F\n2021-06-01 08:30 ABCD"))

	in := filepath.Join(dir, "in.png")
	if err := d.SaveImage(createTestImage(120, 80), in); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out", "nested", "clean.png")

	rec, err := d.DeidentifyFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("DeidentifyFile failed: %v", err)
	}
	want := types.PatientRecord{
		PatientID:    anonymize.PatientID("JANEROE", "02031975"),
		XrayDateTime: "202106010830",
		Gender:       "F",
		Path:         out,
	}
	if rec != want {
		t.Errorf("Record = %+v, want %+v", rec, want)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Expected output file: %v", err)
	}
}

func TestDeidentifyFileMissing(t *testing.T) {
	d, _ := New(fixedEngine(""))
	if _, err := d.DeidentifyFile(context.Background(), "does-not-exist.png", filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(RecognizerConfig{Backend: "ollama", URL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("ollama recognizer: %v", err)
	}
	if _, ok := r.(*client.VisionRecognizer); !ok {
		t.Errorf("Expected a VisionRecognizer, got %T", r)
	}
	if _, err := NewRecognizer(RecognizerConfig{Backend: "llamacpp"}); err != nil {
		t.Errorf("llamacpp recognizer: %v", err)
	}
	if _, err := NewRecognizer(RecognizerConfig{Backend: "abbyy"}); err == nil {
		t.Error("Expected error for unknown backend")
	}

	_, err = NewRecognizer(RecognizerConfig{Backend: "tesseract"})
	if !ocr.Enabled && !errors.Is(err, ocr.ErrOCRNotEnabled) {
		t.Errorf("Expected ErrOCRNotEnabled without the ocr tag, got %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version || Version == "" {
		t.Errorf("Unexpected version %q", GetVersion())
	}
}
