package summarizer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

var digitWords = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// spellIndex renders i with spelled-out digits so filler text never trips the
// numeric detector.
func spellIndex(i int) string {
	digits := strconv.Itoa(i)
	words := make([]string, len(digits))
	for j, r := range digits {
		words[j] = digitWords[r-'0']
	}
	return strings.Join(words, " ")
}

// parseFillerIndex recovers the index embedded by longUnit, if s is a filler
// sentence.
func parseFillerIndex(s string) (int, bool) {
	const prefix = "Filler sentence "
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(s, prefix)
	cut := strings.Index(rest, " describes")
	if cut < 0 {
		return 0, false
	}

	n := 0
	for _, w := range strings.Fields(rest[:cut]) {
		d := -1
		for v, word := range digitWords {
			if w == word {
				d = v
				break
			}
		}
		if d < 0 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

// longUnit builds a unit of n filler sentences plus any extra sentences
// appended verbatim. The filler carries no digits or detector trigger words,
// so only the extras can be critical.
func longUnit(n int, extra ...string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "Filler sentence %s describes ordinary routine procedure without surprises. ", spellIndex(i))
	}
	for _, e := range extra {
		sb.WriteString(e)
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

func TestExtractive_EmptyUnit(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	for _, text := range []string{"", "   \n ", "?", "!!! ???"} {
		_, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.35})
		assert.ErrorIs(t, err, ErrEmptyUnit, "text %q", text)
	}
}

func TestExtractive_ShortUnitReturnedUnchanged(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	text := "Short unit."
	res, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.35, MaxWords: 100})
	require.NoError(t, err)
	assert.Equal(t, text, res.SummaryText)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "nothing removed", res.RemovalReason)
}

func TestExtractive_CompressesToTarget(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	text := longUnit(20)
	source := textutil.CountWords(text)

	res, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.3})
	require.NoError(t, err)

	got := textutil.CountWords(res.SummaryText)
	assert.Less(t, got, source)
	assert.LessOrEqual(t, got, int(float64(source)*0.3)+10)
	assert.Greater(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.NotEmpty(t, res.RemovedContent)
	assert.Equal(t, StrategyExtractive, res.StrategyUsed)
}

func TestExtractive_CriticalSentenceBoosted(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	criticalSentence := "Payment is waived unless the invoice exceeds 500 dollars."
	text := longUnit(15, criticalSentence)

	res, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.25})
	require.NoError(t, err)

	assert.Contains(t, res.SummaryText, criticalSentence,
		"boosted critical sentence should survive aggressive compression")
	assert.Contains(t, res.CriticalSentences, criticalSentence)
}

func TestExtractive_PreservesSourceOrder(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	text := longUnit(12)
	res, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.5})
	require.NoError(t, err)

	// Each selected filler sentence carries its index; indices must ascend.
	last := -1
	for _, s := range textutil.SplitSentences(res.SummaryText) {
		n, ok := parseFillerIndex(s)
		require.True(t, ok, "unexpected sentence %q", s)
		assert.Greater(t, n, last, "sentences must keep original order")
		last = n
	}
}

func TestExtractive_Deterministic(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)
	text := longUnit(25, "However, a 10% surcharge applies after March 1, 2026.")

	first, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.3})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Summarize(context.Background(), Request{Text: text, TargetRatio: 0.3})
		require.NoError(t, err)
		assert.Equal(t, first.SummaryText, again.SummaryText)
		assert.Equal(t, first.Confidence, again.Confidence)
	}
}

func TestExtractive_MaxWordsCeiling(t *testing.T) {
	e := NewExtractive(DefaultConfig(), nil)

	res, err := e.Summarize(context.Background(), Request{Text: longUnit(30), TargetRatio: 0.9, MaxWords: 40})
	require.NoError(t, err)
	assert.LessOrEqual(t, textutil.CountWords(res.SummaryText), 40+10,
		"selection must respect the hard ceiling within one sentence of slack")
}

func TestForStrategy(t *testing.T) {
	tests := []struct {
		strategy Strategy
		wantErr  bool
	}{
		{strategy: StrategyExtractive},
		{strategy: StrategyAbstractive},
		{strategy: StrategyHybrid},
		{strategy: StrategyCritical},
		{strategy: Strategy("made-up"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			s, err := ForStrategy(tt.strategy, DefaultConfig(), nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, s.Strategy())
		})
	}
}
