package types

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Unknown is the marker the OCR layout substitutes for fields it could not read.
const Unknown = "UnkU"

// Gender values allowed in a PatientRecord
const (
	GenderMale    = "M"
	GenderFemale  = "F"
	GenderUnknown = "U"
)

// Mask is a single channel map with the same bounds as its source image.
// Values are either binary {0,255} or intermediate depending on stage.
type Mask = *image.Gray

// ProcessingMode selects how burned-in text is removed
type ProcessingMode string

const (
	ModeInpaint ProcessingMode = "inpaint"
	ModeMask    ProcessingMode = "mask"
)

// ErrInvalidProcessingMode is returned for any mode outside {inpaint, mask}
var ErrInvalidProcessingMode = errors.New("invalid processing mode")

// ParseProcessingMode validates a configured mode string
func ParseProcessingMode(s string) (ProcessingMode, error) {
	switch m := ProcessingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInpaint, ModeMask:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (use inpaint or mask)", ErrInvalidProcessingMode, s)
	}
}

// BoundingBox is an axis-aligned box in pixel coordinates, max edges exclusive
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() int {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box
func (b BoundingBox) Height() int {
	return b.YMax - b.YMin
}

// Area returns the number of pixels covered by the box
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// RawFieldSet holds the four strings read from one OCR pass over one image variant
type RawFieldSet struct {
	Name     string `json:"name"`
	Birth    string `json:"birth"`
	DateTime string `json:"date_time"`
	Gender   string `json:"gender"`
}

// PatientRecord is the anonymized row emitted for one input image
type PatientRecord struct {
	PatientID    string `json:"patient_id"`
	XrayDateTime string `json:"xray_date_time"`
	Gender       string `json:"gender"`
	Path         string `json:"path"`
}

// NormalizeGender maps a voted gender string onto {M, F, U}
func NormalizeGender(g string) string {
	switch strings.ToUpper(strings.TrimSpace(g)) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	default:
		return GenderUnknown
	}
}
