package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode classifies a failure for logs and the run summary
type ErrorCode string

const (
	// Run-level errors
	ErrorConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"

	// Per-image errors
	ErrorImageLoadFailed        ErrorCode = "IMAGE_LOAD_FAILED"
	ErrorTextRemovalFailed      ErrorCode = "TEXT_REMOVAL_FAILED"
	ErrorRegionExtractionFailed ErrorCode = "REGION_EXTRACTION_FAILED"
	ErrorOCRFailed              ErrorCode = "OCR_FAILED"
	ErrorOutputFailed           ErrorCode = "OUTPUT_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Path      string
	Stage     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	prefix := string(e.Code)
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewConfigurationError(field string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorConfigurationInvalid,
		Message:   fmt.Sprintf("Invalid configuration: %s", field),
		Stage:     "config",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field": field,
		},
		Cause: cause,
	}
}

func NewImageLoadError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageLoadFailed,
		Message:   "Failed to load image",
		Path:      path,
		Stage:     "load",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewTextRemovalError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorTextRemovalFailed,
		Message:   "Failed to remove burned-in text",
		Path:      path,
		Stage:     "remove",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRegionExtractionError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRegionExtractionFailed,
		Message:   "No image region found after text removal",
		Path:      path,
		Stage:     "crop",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(path string, variant string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed on variant: %s", variant),
		Path:      path,
		Stage:     "ocr",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"variant": variant,
		},
		Cause: cause,
	}
}

func NewOutputError(path string, target string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOutputFailed,
		Message:   fmt.Sprintf("Failed to write %s", target),
		Path:      path,
		Stage:     "output",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"target": target,
		},
		Cause: cause,
	}
}

// CodeOf returns the code of the first ProcessingError in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// ToMap converts error to map for structured log fields
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
	if e.Path != "" {
		result["path"] = e.Path
	}
	if e.Stage != "" {
		result["stage"] = e.Stage
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
