package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/chunker"
	"github.com/fyrsmithlabs/compressd/internal/document"
	"github.com/fyrsmithlabs/compressd/internal/summarizer"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

var topics = []string{
	"ventilation", "lighting", "plumbing", "flooring", "roofing",
	"painting", "landscaping", "inventory", "scheduling", "training",
	"inspection", "cleaning",
}

// manualParagraphs builds a facilities-manual style document of roughly
// thirteen hundred words across three numbered sections, with exactly one
// paragraph carrying an exception clause. No other paragraph contains digits
// or trigger phrases, so the critical fact count is deterministic.
func manualParagraphs() []document.Paragraph {
	var paragraphs []document.Paragraph

	heading := func(page int, text string) {
		paragraphs = append(paragraphs, document.Paragraph{Page: page, Text: text})
	}
	body := func(page int, topic string) {
		var text string
		for s := 0; s < 10; s++ {
			text += fmt.Sprintf("The %s team reviews its standard checklist during every weekly cycle. ", topic)
		}
		paragraphs = append(paragraphs, document.Paragraph{Page: page, Text: text})
	}

	heading(1, "1 Overview")
	for i := 0; i < 4; i++ {
		body(1, topics[i])
	}
	heading(2, "2 Operations")
	for i := 4; i < 8; i++ {
		body(2, topics[i])
	}
	paragraphs = append(paragraphs, document.Paragraph{
		Page: 2,
		Text: "Maintenance coverage continues through winter unless the facility closes for the season.",
	})
	heading(3, "3 Compliance")
	for i := 8; i < 12; i++ {
		body(3, topics[i])
	}

	return paragraphs
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	svc, err := New(cfg, chunker.DefaultConfig(), summarizer.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "defaults valid", mutate: func(c *Config) {}},
		{name: "unknown strategy", mutate: func(c *Config) { c.Strategy = "magic" }, wantErr: summarizer.ErrUnknownStrategy},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: ErrNoWorkers},
		{name: "unknown policy", mutate: func(c *Config) { c.FailurePolicy = "retry" }, wantErr: ErrUnknownFailurePolicy},
		{name: "zero max length", mutate: func(c *Config) { c.MaxLength = 0 }, wantErr: ErrMaxLengthNonPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun_FacilitiesManual(t *testing.T) {
	svc := newTestService(t, DefaultConfig())

	report, err := svc.Run(context.Background(), manualParagraphs())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.GeneratedAt.IsZero())

	assert.GreaterOrEqual(t, report.Metrics.TotalChunks, 5)
	assert.LessOrEqual(t, report.Metrics.TotalChunks, 50)

	require.Len(t, report.CriticalFacts, 1)
	fact := report.CriticalFacts[0]
	assert.Equal(t, document.FactTypeException, fact.Type)
	assert.Equal(t, "2", fact.Section)
	assert.Equal(t, 2, fact.Page)
	assert.Contains(t, fact.Sentence, "unless the facility closes")

	assert.Equal(t, 1.0, report.Metrics.CriticalPreservation,
		"boosted exception sentence must survive into a summary")

	assert.LessOrEqual(t, report.DocumentSummary.FinalWordCount, DefaultConfig().MaxLength)
	assert.Equal(t, textutil.CountWords(report.DocumentSummary.SummaryText),
		report.DocumentSummary.FinalWordCount)

	assert.Greater(t, report.Metrics.CompressionRatio, 0.0)
	assert.LessOrEqual(t, report.Metrics.CompressionRatio, 1.0)
	assert.GreaterOrEqual(t, report.Metrics.InformationLoss, 0.0)
	assert.LessOrEqual(t, report.Metrics.InformationLoss, 1.0)
}

func TestRun_SectionAndChunkOrdering(t *testing.T) {
	svc := newTestService(t, DefaultConfig())

	report, err := svc.Run(context.Background(), manualParagraphs())
	require.NoError(t, err)

	sectionIDs := make([]string, 0, len(report.Sections))
	for _, sec := range report.Sections {
		sectionIDs = append(sectionIDs, sec.SectionID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, sectionIDs)
	assert.Equal(t, sectionIDs, report.DocumentSummary.SourceSectionIDs)

	lastID := -1
	for _, rec := range report.Chunks {
		assert.Greater(t, rec.Chunk.ID, lastID, "chunk records keep chunk order")
		lastID = rec.Chunk.ID
	}

	for _, sec := range report.Sections {
		for i := 1; i < len(sec.SourceChunkIDs); i++ {
			assert.Greater(t, sec.SourceChunkIDs[i], sec.SourceChunkIDs[i-1])
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	svc := newTestService(t, DefaultConfig())
	paragraphs := manualParagraphs()

	first, err := svc.Run(context.Background(), paragraphs)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), paragraphs)
	require.NoError(t, err)

	// Run identity differs; everything derived from input must not.
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Sections, second.Sections)
	assert.Equal(t, first.DocumentSummary, second.DocumentSummary)
	assert.Equal(t, first.CriticalFacts, second.CriticalFacts)
}

func TestRun_EmptyDocument(t *testing.T) {
	svc := newTestService(t, DefaultConfig())

	for _, paragraphs := range [][]document.Paragraph{
		nil,
		{{Page: 1, Text: "   "}},
	} {
		_, err := svc.Run(context.Background(), paragraphs)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestRun_PunctuationOnlyChunkSkipped(t *testing.T) {
	svc, err := New(DefaultConfig(), chunker.Config{MinWords: 5, MaxWords: 10, OverlapWords: 0},
		summarizer.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	report, err := svc.Run(context.Background(), []document.Paragraph{
		{Page: 1, Text: "The storage room inventory list is rechecked after every delivery arrives."},
		{Page: 1, Text: "!!! ??? *** --- %%%"},
	})
	require.NoError(t, err, "a chunk without usable sentences is skipped, not fatal")

	require.Len(t, report.Chunks, 2)
	assert.NotNil(t, report.Chunks[0].Summary)
	assert.Nil(t, report.Chunks[1].Summary, "skipped chunk emits no summary")
	assert.False(t, report.Chunks[1].Chunk.IsCritical(), "flags still computed, all false")
	assert.Empty(t, report.CriticalFacts)
	assert.NotEmpty(t, report.DocumentSummary.SummaryText)
}

func TestRun_FailFastAbortsWithoutModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = summarizer.StrategyAbstractive
	cfg.FailurePolicy = PolicyFailFast
	svc := newTestService(t, cfg)

	report, err := svc.Run(context.Background(), manualParagraphs())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.Nil(t, report, "a fail-fast run emits no partial report")
}

func TestRun_FallbackDegradesToExtractive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = summarizer.StrategyAbstractive
	cfg.FailurePolicy = PolicyFallback
	svc := newTestService(t, cfg)

	report, err := svc.Run(context.Background(), manualParagraphs())
	require.NoError(t, err, "fallback policy completes the run without a model")

	sawFallback := false
	for _, rec := range report.Chunks {
		if rec.Summary == nil {
			continue
		}
		if rec.Summary.StrategyUsed == string(summarizer.StrategyExtractive) {
			assert.Contains(t, rec.Summary.RemovalReason, "fallback")
			sawFallback = true
		}
	}
	assert.True(t, sawFallback, "long chunks require the model and must fall back")
}

func TestRun_ContextCancelled(t *testing.T) {
	svc := newTestService(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Repeated runs guard against scheduling luck letting a cancelled run
	// slip through the worker pool.
	for i := 0; i < 25; i++ {
		report, err := svc.Run(ctx, manualParagraphs())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
	}
}

func TestRun_OriginalWordsExcludeOverlap(t *testing.T) {
	svc := newTestService(t, DefaultConfig())
	paragraphs := manualParagraphs()

	headings := map[string]bool{"1 Overview": true, "2 Operations": true, "3 Compliance": true}
	var sourceWords int
	for _, p := range paragraphs {
		if headings[p.Text] {
			continue
		}
		sourceWords += textutil.CountWords(p.Text)
	}

	report, err := svc.Run(context.Background(), paragraphs)
	require.NoError(t, err)
	assert.Equal(t, sourceWords, report.Metrics.OriginalWords,
		"overlap words must not inflate the original word count")
}
