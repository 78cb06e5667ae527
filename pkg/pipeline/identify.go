package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/menta2k/xray-deid/pkg/anonymize"
	"github.com/menta2k/xray-deid/pkg/consensus"
	"github.com/menta2k/xray-deid/pkg/ocr"
	"github.com/menta2k/xray-deid/pkg/types"
)

// VariantError reports which OCR input failed
type VariantError struct {
	Variant string
	Err     error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %s: %v", e.Variant, e.Err)
}

func (e *VariantError) Unwrap() error {
	return e.Err
}

// Identity is the voted outcome of reading all variants of one frame
type Identity struct {
	PatientID string
	Fields    types.RawFieldSet
	// Reads holds the per-variant fields in variant order
	Reads []types.RawFieldSet
}

// Identifier reads every variant and votes the fields
type Identifier struct {
	reader *ocr.Reader
}

// NewIdentifier creates an Identifier around reader
func NewIdentifier(reader *ocr.Reader) *Identifier {
	return &Identifier{reader: reader}
}

// Identify runs OCR on each variant independently, votes each field and
// hashes the voted name and birth date.
//
// A variant on which nothing at all was recognized contributes unknown
// fields to the vote. Only when every variant is empty is the frame rejected
// with ocr.ErrNoText. Any other recognizer error aborts the frame.
func (id *Identifier) Identify(ctx context.Context, variants []Variant) (Identity, error) {
	reads := make([]types.RawFieldSet, 0, len(variants))
	empty := 0

	for _, v := range variants {
		fields, err := id.reader.Read(ctx, v.Image)
		switch {
		case errors.Is(err, ocr.ErrNoText):
			empty++
			fields = ocr.Unreadable
		case err != nil:
			return Identity{}, &VariantError{Variant: v.Name, Err: err}
		}
		reads = append(reads, fields)
	}

	if len(variants) == 0 || empty == len(variants) {
		return Identity{}, &VariantError{Variant: "all", Err: ocr.ErrNoText}
	}

	voted := consensus.Fields(reads)
	voted.Birth = anonymize.StripPunctuation(voted.Birth)

	return Identity{
		PatientID: anonymize.PatientID(voted.Name, voted.Birth),
		Fields:    voted,
		Reads:     reads,
	}, nil
}
