package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	xerrors "github.com/menta2k/xray-deid/internal/errors"
	"github.com/menta2k/xray-deid/pkg/anonymize"
	"github.com/menta2k/xray-deid/pkg/cropper"
	"github.com/menta2k/xray-deid/pkg/ocr"
	"github.com/menta2k/xray-deid/pkg/output"
	"github.com/menta2k/xray-deid/pkg/processing"
	"github.com/menta2k/xray-deid/pkg/types"
)

const (
	fullLabel = "JOHN DOE\nX\n01.01.1980M\n2020-01-01 10:00 ABCD"
	twoLines  = "JOHN DOE\n2020-01-01 10:00 ABCD"
)

// createTestImage draws a gray radiograph plate on black with a block of
// reference-coloured label text in the top-left margin
func createTestImage(width, height int) (*image.RGBA, image.Rectangle, image.Rectangle) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	plate := image.Rect(width/3, height/8, width-width/10, height-height/8)
	label := image.Rect(5, 5, width/4, height/4)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := image.Pt(x, y)
			switch {
			case p.In(label):
				img.Set(x, y, color.RGBA{255, 245, 149, 255})
			case p.In(plate):
				img.Set(x, y, color.RGBA{128, 128, 128, 255})
			default:
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	for x := label.Min.X + 3; x < label.Max.X-3; x += 4 {
		for y := label.Min.Y + 3; y < label.Max.Y-3; y++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return img, plate, label
}

// scriptedEngine replies with texts in call order, then repeats the last one
type scriptedEngine struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	seen    []image.Image
}

func (s *scriptedEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, img)
	if s.err != nil {
		return "", s.err
	}
	i := min(s.calls, len(s.replies)-1)
	s.calls++
	return s.replies[i], nil
}

func newOrchestrator(t *testing.T, mode types.ProcessingMode, engine *scriptedEngine, in, out string, workers int, debug bool) (*Orchestrator, *output.CSVSink, *bytes.Buffer) {
	t.Helper()
	opts := DefaultOptions()
	opts.Mode = mode
	proc, err := NewProcessor(opts)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	sink := output.NewCSVSink(filepath.Join(out, "labelled_info.csv"))
	var logs bytes.Buffer
	return NewOrchestrator(OrchestratorOptions{
		Processor:  proc,
		Identifier: NewIdentifier(ocr.NewReader(engine, nil)),
		Images:     output.NewImageWriter(in, out, "", 95),
		Sink:       sink,
		Logger:     zerolog.New(&logs),
		RunID:      "test-run",
		Workers:    workers,
		Debug:      debug,
	}), sink, &logs
}

func writeInput(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	os.MkdirAll(filepath.Dir(path), 0755)
	if err := processing.NewProcessor().SaveImage(img, path, ""); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestNewProcessorInvalidMode(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = "blur"
	if _, err := NewProcessor(opts); !errors.Is(err, types.ErrInvalidProcessingMode) {
		t.Errorf("Expected ErrInvalidProcessingMode, got %v", err)
	}
}

func TestCleanBothModes(t *testing.T) {
	img, plate, label := createTestImage(120, 80)

	for _, mode := range []types.ProcessingMode{types.ModeInpaint, types.ModeMask} {
		t.Run(string(mode), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Mode = mode
			p, _ := NewProcessor(opts)

			res, err := p.Clean(img)
			if err != nil {
				t.Fatalf("Clean failed: %v", err)
			}
			if p.Strategy() != string(mode) {
				t.Errorf("Expected strategy %s, got %s", mode, p.Strategy())
			}

			if res.Box.Rect() != plate {
				t.Errorf("Expected crop %v, got %v", plate, res.Box.Rect())
			}
			if res.Box.Rect().Overlaps(label) {
				t.Error("Crop must exclude the label")
			}

			for y := label.Min.Y; y < label.Max.Y; y++ {
				for x := label.Min.X; x < label.Max.X; x++ {
					c := res.Detexted.NRGBAAt(x, y)
					if c.R > 15 || c.G > 15 || c.B > 15 {
						t.Fatalf("label pixel (%d,%d) survived removal: %v", x, y, c)
					}
				}
			}

			if len(res.Variants) != 3 {
				t.Fatalf("Expected 3 OCR variants, got %d", len(res.Variants))
			}
			names := []string{VariantTextOnly, VariantTightMask, VariantDilatedMask}
			for i, v := range res.Variants {
				if v.Name != names[i] {
					t.Errorf("variant %d: expected %s, got %s", i, names[i], v.Name)
				}
				if v.Image.Bounds() != img.Bounds() {
					t.Errorf("variant %s has bounds %v", v.Name, v.Image.Bounds())
				}
			}
		})
	}
}

func TestCleanTextOnlyIsBlackOutsideLabel(t *testing.T) {
	img, _, label := createTestImage(120, 80)
	p, _ := NewProcessor(DefaultOptions())
	res, err := p.Clean(img)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	b := res.TextOnly.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if image.Pt(x, y).In(label) {
				continue
			}
			c := res.TextOnly.NRGBAAt(x, y)
			if c.R != 0 || c.G != 0 || c.B != 0 {
				t.Fatalf("(%d,%d) outside the label is %v", x, y, c)
			}
		}
	}
}

func TestCleanNoForeground(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	p, _ := NewProcessor(DefaultOptions())
	if _, err := p.Clean(img); !errors.Is(err, cropper.ErrNoForeground) {
		t.Errorf("Expected ErrNoForeground, got %v", err)
	}
}

func TestIdentifyConsensusRecoversDegradedVariant(t *testing.T) {
	engine := &scriptedEngine{replies: []string{fullLabel, twoLines, fullLabel}}
	id := NewIdentifier(ocr.NewReader(engine, nil))

	variants := make([]Variant, 3)
	ident, err := id.Identify(context.Background(), variants)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}

	if ident.Reads[1].Birth != "Unk" || ident.Reads[1].Gender != "U" {
		t.Errorf("Expected the two-line variant to degrade to unknown, got %+v", ident.Reads[1])
	}
	if ident.Fields.Birth != "01011980" || ident.Fields.Gender != "M" {
		t.Errorf("Expected consensus to recover birth and gender, got %+v", ident.Fields)
	}
	if ident.Fields.DateTime != "202001011000" {
		t.Errorf("Unexpected date-time %q", ident.Fields.DateTime)
	}
	if want := anonymize.PatientID("JOHNDOE", "01011980"); ident.PatientID != want {
		t.Errorf("Expected patient ID %s, got %s", want, ident.PatientID)
	}
}

func TestIdentifyEmptyVariants(t *testing.T) {
	engine := &scriptedEngine{replies: []string{"", fullLabel, ""}}
	ident, err := NewIdentifier(ocr.NewReader(engine, nil)).Identify(context.Background(), make([]Variant, 3))
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if ident.Reads[0] != ocr.Unreadable {
		t.Errorf("Expected unreadable fields for an empty variant, got %+v", ident.Reads[0])
	}

	engine = &scriptedEngine{replies: []string{" "}}
	_, err = NewIdentifier(ocr.NewReader(engine, nil)).Identify(context.Background(), make([]Variant, 3))
	if !errors.Is(err, ocr.ErrNoText) {
		t.Errorf("Expected ErrNoText when every variant is empty, got %v", err)
	}
}

func TestIdentifyEngineError(t *testing.T) {
	boom := errors.New("engine down")
	engine := &scriptedEngine{err: boom}
	_, err := NewIdentifier(ocr.NewReader(engine, nil)).Identify(context.Background(), []Variant{{Name: VariantTightMask}})
	var ve *VariantError
	if !errors.As(err, &ve) || ve.Variant != VariantTightMask || !errors.Is(err, boom) {
		t.Errorf("Expected VariantError for %s wrapping the engine error, got %v", VariantTightMask, err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	img, plate, _ := createTestImage(120, 80)
	path := writeInput(t, in, "2020/patient/chest.png", img)

	engine := &scriptedEngine{replies: []string{fullLabel, twoLines, fullLabel}}
	orch, _, _ := newOrchestrator(t, types.ModeInpaint, engine, in, out, 1, true)

	summary, err := orch.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Records) != 1 || len(summary.Failures) != 0 {
		t.Fatalf("Expected 1 record and no failures, got %+v", summary)
	}
	if summary.RunID != "test-run" {
		t.Errorf("Expected run id to be carried, got %q", summary.RunID)
	}

	rec := summary.Records[0]
	want := types.PatientRecord{
		PatientID:    anonymize.PatientID("JOHNDOE", "01011980"),
		XrayDateTime: "202001011000",
		Gender:       "M",
		Path:         filepath.Join(out, "2020", "patient", "chest.png"),
	}
	if rec != want {
		t.Errorf("Record = %+v, want %+v", rec, want)
	}

	if _, ok := engine.seen[0].(*image.NRGBA); !ok {
		t.Error("Expected the text-only rendering to be read first")
	}
	if _, ok := engine.seen[1].(*image.Gray); !ok {
		t.Error("Expected a mask rendering to be read second")
	}

	cropped, err := processing.NewProcessor().LoadImage(rec.Path)
	if err != nil {
		t.Fatalf("cropped image not written: %v", err)
	}
	if cropped.Bounds().Dx() != plate.Dx() || cropped.Bounds().Dy() != plate.Dy() {
		t.Errorf("Expected cropped size %v, got %v", plate.Size(), cropped.Bounds().Size())
	}

	for _, name := range []string{"structural", "tight", "dilated", "text_only", "detexted", "overlay"} {
		p := filepath.Join(out, "debug", "2020", "patient", "chest", name+".png")
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected debug artefact %s: %v", name, err)
		}
	}

	f, _ := os.Open(filepath.Join(out, "labelled_info.csv"))
	defer f.Close()
	rows, _ := csv.NewReader(f).ReadAll()
	if len(rows) != 2 || rows[1][0] != want.PatientID || rows[1][2] != "M" {
		t.Errorf("Unexpected table %v", rows)
	}
}

func TestRunSkipsFailedImages(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	img, _, _ := createTestImage(120, 80)
	blank := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := 3; i < len(blank.Pix); i += 4 {
		blank.Pix[i] = 255
	}

	paths := []string{
		writeInput(t, in, "a.png", img),
		writeInput(t, in, "b_blank.png", blank),
		filepath.Join(in, "c_missing.png"),
		writeInput(t, in, "d.png", img),
	}

	engine := &scriptedEngine{replies: []string{fullLabel}}
	orch, _, logs := newOrchestrator(t, types.ModeMask, engine, in, out, 1, false)

	summary, err := orch.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(summary.Records))
	}
	if summary.Records[0].Path != filepath.Join(out, "a.png") || summary.Records[1].Path != filepath.Join(out, "d.png") {
		t.Errorf("Unexpected record paths %v", summary.Records)
	}

	codes := map[xerrors.ErrorCode]string{}
	for _, f := range summary.Failures {
		codes[f.Code] = f.Path
	}
	if codes[xerrors.ErrorRegionExtractionFailed] != paths[1] {
		t.Errorf("Expected region extraction failure for %s, got %v", paths[1], codes)
	}
	if codes[xerrors.ErrorImageLoadFailed] != paths[2] {
		t.Errorf("Expected load failure for %s, got %v", paths[2], codes)
	}
	if !bytes.Contains(logs.Bytes(), []byte(paths[1])) {
		t.Error("Expected the failed image to be named in the log")
	}
	if _, err := os.Stat(filepath.Join(out, "b_blank.png")); !os.IsNotExist(err) {
		t.Error("Expected no output image for a failed frame")
	}
}

func TestRunOCRFailure(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	img, _, _ := createTestImage(120, 80)
	path := writeInput(t, in, "a.png", img)

	orch, _, _ := newOrchestrator(t, types.ModeInpaint, &scriptedEngine{err: errors.New("engine down")}, in, out, 1, false)
	summary, err := orch.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Code != xerrors.ErrorOCRFailed {
		t.Fatalf("Expected one OCR failure, got %+v", summary.Failures)
	}
	if summary.Failures[0].Details["variant"] != VariantTextOnly {
		t.Errorf("Expected failing variant %s, got %v", VariantTextOnly, summary.Failures[0].Details)
	}
}

func TestRunKeepsInputOrderWithWorkers(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	img, _, _ := createTestImage(120, 80)

	var paths []string
	for _, name := range []string{"e.png", "a.png", "d.png", "b.png", "c.png", "f.png"} {
		paths = append(paths, writeInput(t, in, name, img))
	}

	orch, _, _ := newOrchestrator(t, types.ModeMask, &scriptedEngine{replies: []string{fullLabel}}, in, out, 4, false)
	summary, err := orch.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summary.Records) != len(paths) {
		t.Fatalf("Expected %d records, got %d", len(paths), len(summary.Records))
	}
	for i, p := range paths {
		if want := filepath.Join(out, filepath.Base(p)); summary.Records[i].Path != want {
			t.Errorf("record %d: expected %s, got %s", i, want, summary.Records[i].Path)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	orch, _, _ := newOrchestrator(t, types.ModeMask, &scriptedEngine{replies: []string{fullLabel}}, in, out, 2, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := orch.Run(ctx, []string{filepath.Join(in, "x.png")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if summary == nil {
		t.Fatal("Expected a summary even when canceled")
	}
}

func BenchmarkClean(b *testing.B) {
	img, _, _ := createTestImage(400, 300)
	p, _ := NewProcessor(DefaultOptions())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Clean(img)
	}
}
