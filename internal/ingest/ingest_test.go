package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/compressd/internal/document"
)

func TestReadDocument(t *testing.T) {
	input := "First paragraph on page one.\n\nSecond paragraph.\fOnly paragraph on page two."

	got, err := ReadDocument(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []document.Paragraph{
		{Page: 1, Text: "First paragraph on page one."},
		{Page: 2, Text: "Second paragraph."},
		{Page: 2, Text: "Only paragraph on page two."},
	}, got)
}

func TestReadDocument_Empty(t *testing.T) {
	for _, input := range []string{"", "   \n\n  ", "\f\f"} {
		_, err := ReadDocument(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrEmptyInput, "input %q", input)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []document.Paragraph
	}{
		{
			name:  "crlf normalized",
			input: "Line one.\r\n\r\nLine two.",
			want: []document.Paragraph{
				{Page: 1, Text: "Line one."},
				{Page: 1, Text: "Line two."},
			},
		},
		{
			name:  "empty middle page advances numbering",
			input: "Page one.\f\fPage three.",
			want: []document.Paragraph{
				{Page: 1, Text: "Page one."},
				{Page: 3, Text: "Page three."},
			},
		},
		{
			name:  "multi-line paragraph stays joined",
			input: "A sentence\nthat wraps lines.\n\nNext paragraph.",
			want: []document.Paragraph{
				{Page: 1, Text: "A sentence\nthat wraps lines."},
				{Page: 1, Text: "Next paragraph."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParse_OrderPreserved(t *testing.T) {
	input := "One.\n\nTwo.\n\nThree.\fFour."
	got := Parse(input)

	texts := make([]string, len(got))
	for i, p := range got {
		texts[i] = p.Text
	}
	assert.Equal(t, []string{"One.", "Two.", "Three.", "Four."}, texts)
}
