package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/compressd/internal/critical"
)

func TestFactTypeFor_Priority(t *testing.T) {
	tests := []struct {
		name  string
		flags critical.Flags
		want  FactType
	}{
		{
			name:  "exception outranks everything",
			flags: critical.Flags{HasException: true, HasRisk: true, HasContradiction: true, HasNumbers: true},
			want:  FactTypeException,
		},
		{
			name:  "risk outranks contradiction and numeric",
			flags: critical.Flags{HasRisk: true, HasContradiction: true, HasNumbers: true},
			want:  FactTypeRisk,
		},
		{
			name:  "contradiction outranks numeric",
			flags: critical.Flags{HasContradiction: true, HasNumbers: true},
			want:  FactTypeContradiction,
		},
		{
			name:  "numeric alone",
			flags: critical.Flags{HasNumbers: true},
			want:  FactTypeNumeric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FactTypeFor(tt.flags))
		})
	}
}

func TestChunk_SourceWords(t *testing.T) {
	c := Chunk{WordCount: 120, OverlapWords: 30}
	assert.Equal(t, 90, c.SourceWords())
	assert.False(t, c.IsCritical())

	c.Flags = critical.Flags{HasRisk: true}
	assert.True(t, c.IsCritical())
}
