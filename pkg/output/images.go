package output

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/xray-deid/internal/utils"
	"github.com/menta2k/xray-deid/pkg/processing"
)

// ImageWriter saves images under an output root, mirroring their location
// under the input root
type ImageWriter struct {
	processor  *processing.Processor
	inputRoot  string
	outputRoot string
	format     string
}

// NewImageWriter creates an ImageWriter. An empty format keeps each input's extension.
func NewImageWriter(inputRoot, outputRoot, format string, quality int) *ImageWriter {
	return &ImageWriter{
		processor:  processing.NewProcessorWithQuality(quality),
		inputRoot:  inputRoot,
		outputRoot: outputRoot,
		format:     format,
	}
}

// Target returns the output path for the input file at src
func (w *ImageWriter) Target(src string) (string, error) {
	dst, err := utils.MirrorPath(w.inputRoot, w.outputRoot, src)
	if err != nil {
		return "", err
	}
	return processing.OutputPath(dst, w.format), nil
}

// Write saves img at the mirrored location of src and returns the path written
func (w *ImageWriter) Write(src string, img image.Image) (string, error) {
	dst, err := w.Target(src)
	if err != nil {
		return "", err
	}
	return dst, w.save(dst, w.format, img)
}

// WriteDebug saves a named debug artefact for src under <output>/debug/
func (w *ImageWriter) WriteDebug(src, name string, img image.Image) (string, error) {
	rel, err := utils.MirrorPath(w.inputRoot, "", src)
	if err != nil {
		return "", err
	}
	base := rel[:len(rel)-len(filepath.Ext(rel))]
	dst := filepath.Join(w.outputRoot, "debug", base, name+".png")
	return dst, w.save(dst, "png", img)
}

func (w *ImageWriter) save(dst, format string, img image.Image) error {
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := w.processor.SaveImage(img, dst, format); err != nil {
		return fmt.Errorf("failed to save %s: %w", dst, err)
	}
	return nil
}
