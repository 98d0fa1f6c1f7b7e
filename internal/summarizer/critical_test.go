package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

func TestCriticalPreserving_AppendsMissingCritical(t *testing.T) {
	c := NewCriticalPreserving(DefaultConfig(), nil)

	critical := []string{
		"Access is denied unless a permit was issued before June 1, 2025.",
		"WARNING: pressure above 80 psi must not be applied.",
	}
	text := longUnit(30, critical...)

	res, err := c.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.2})
	require.NoError(t, err)

	norm := textutil.Normalize(res.SummaryText)
	for _, sentence := range critical {
		assert.Contains(t, norm, textutil.Normalize(sentence),
			"critical sentence must appear in the summary")
	}
	assert.Equal(t, StrategyCritical, res.StrategyUsed)
	assert.Len(t, res.CriticalSentences, 2)
}

func TestCriticalPreserving_TrimsNonCriticalFirst(t *testing.T) {
	c := NewCriticalPreserving(DefaultConfig(), nil)

	critical := "Shipment is forfeited unless customs clears it within 3 days."
	text := longUnit(40, critical)

	res, err := c.Summarize(context.Background(), Request{Text: text, MaxWords: 30})
	require.NoError(t, err)

	assert.Contains(t, textutil.Normalize(res.SummaryText), textutil.Normalize(critical))
	assert.LessOrEqual(t, textutil.CountWords(res.SummaryText), 30+textutil.CountWords(critical))
}

func TestCriticalPreserving_CeilingNeverDropsCritical(t *testing.T) {
	c := NewCriticalPreserving(DefaultConfig(), nil)

	critical := []string{
		"Clause 4 is void unless countersigned by May 5, 2026.",
		"CAUTION: storage above 40 degrees is prohibited for this compound.",
		"The 15% penalty conflicts with the waiver granted in clause 9.",
	}
	text := longUnit(50, critical...)

	res, err := c.Summarize(context.Background(), Request{Text: text, MaxWords: 25})
	require.NoError(t, err)

	norm := textutil.Normalize(res.SummaryText)
	for _, s := range critical {
		assert.Contains(t, norm, textutil.Normalize(s))
	}
}

func TestCriticalPreserving_EmptyUnit(t *testing.T) {
	c := NewCriticalPreserving(DefaultConfig(), nil)
	_, err := c.Summarize(context.Background(), Request{Text: "  !  "})
	assert.ErrorIs(t, err, ErrEmptyUnit)
}
