// Package ingest turns page-tagged plain text into the paragraph stream the
// pipeline consumes. Extraction from richer formats (PDF, HTML) is an
// upstream concern; this package only honors the handoff contract: form feeds
// separate pages, blank lines separate paragraphs.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/document"
)

// ErrEmptyInput signals input with no paragraph text on any page.
var ErrEmptyInput = errors.New("input contains no paragraphs")

// ReadDocument reads the full input and returns ordered page-tagged
// paragraphs. Pages are numbered from 1; a page with no text advances the
// page number without emitting paragraphs.
func ReadDocument(r io.Reader) ([]document.Paragraph, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	paragraphs := Parse(string(raw))
	if len(paragraphs) == 0 {
		return nil, ErrEmptyInput
	}
	return paragraphs, nil
}

// Parse splits page-tagged text into paragraphs without the non-empty check.
func Parse(text string) []document.Paragraph {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []document.Paragraph
	for pageIdx, page := range strings.Split(text, "\f") {
		for _, block := range strings.Split(page, "\n\n") {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			paragraphs = append(paragraphs, document.Paragraph{
				Page: pageIdx + 1,
				Text: block,
			})
		}
	}
	return paragraphs
}
