// Package report serializes the compression report for export and re-import.
// Output is deterministic: identical reports encode to identical bytes, so
// exports diff cleanly across runs.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/compressd/internal/document"
)

var (
	// ErrNilReport signals an attempt to export a nil report.
	ErrNilReport = errors.New("report is nil")

	// ErrMalformed signals input that does not decode as a report.
	ErrMalformed = errors.New("malformed report")
)

// Write encodes the report as indented JSON. Field order follows the struct
// definitions, so equal reports produce byte-identical output.
func Write(w io.Writer, r *document.Report) error {
	if r == nil {
		return ErrNilReport
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report %s: %w", r.RunID, err)
	}
	return nil
}

// Read decodes a report previously written by Write. Unknown fields are
// rejected so silent drift between exporter and importer surfaces as an
// error.
func Read(r io.Reader) (*document.Report, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var report document.Report
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if report.RunID == "" {
		return nil, fmt.Errorf("%w: missing run_id", ErrMalformed)
	}
	return &report, nil
}
