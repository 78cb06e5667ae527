package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/menta2k/xray-deid/pkg/types"
)

// CSVSink writes records to a CSV file. The first Write of a sink replaces
// any existing file and writes the header; later writes append.
type CSVSink struct {
	mu      sync.Mutex
	path    string
	started bool
}

// NewCSVSink creates a sink for path; parent directories are created on first write
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the table file path
func (s *CSVSink) Path() string {
	return s.path
}

// Write appends records in the given order
func (s *CSVSink) Write(ctx context.Context, records []types.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !s.started {
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flag, 0644)
	if err != nil {
		return fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !s.started {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write(row(r)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}
	s.started = true
	return nil
}

// Close is a no-op; every Write opens and closes the file
func (s *CSVSink) Close() error {
	return nil
}
