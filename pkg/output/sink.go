// Package output persists de-identification results: the record table and
// the cropped images.
package output

import (
	"context"
	"errors"

	"github.com/menta2k/xray-deid/pkg/types"
)

// Columns of the record table, in order
var Columns = []string{"patientID", "xrayDateTime", "gender", "path"}

// Sink appends patient records to a table
type Sink interface {
	Write(ctx context.Context, records []types.PatientRecord) error
	Close() error
}

// MultiSink writes to every sink in turn
type MultiSink []Sink

// Write writes records to each sink, stopping at the first error
func (m MultiSink) Write(ctx context.Context, records []types.PatientRecord) error {
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func row(r types.PatientRecord) []string {
	return []string{r.PatientID, r.XrayDateTime, r.Gender, r.Path}
}
