// Package pipeline runs the hierarchical aggregation: chunk summaries in
// parallel behind a level barrier, then section summaries, then the bounded
// document summary, then metrics. Critical facts are extracted directly from
// chunks so the retention contract never depends on summary length pressure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/chunker"
	"github.com/fyrsmithlabs/compressd/internal/critical"
	"github.com/fyrsmithlabs/compressd/internal/document"
	"github.com/fyrsmithlabs/compressd/internal/quality"
	"github.com/fyrsmithlabs/compressd/internal/summarizer"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

const tracerName = "github.com/fyrsmithlabs/compressd/internal/pipeline"
const meterName = "pipeline"

// sectionRatio is the compression ratio for stage-2 re-summarization of
// concatenated chunk summaries.
const sectionRatio = 0.5

// factSummaryWords caps the condensed summary attached to a critical fact.
const factSummaryWords = 25

// Service orchestrates a complete compression run.
type Service struct {
	cfg      Config
	sumCfg   summarizer.Config
	chunker  *chunker.Chunker
	detector *critical.Detector
	primary  summarizer.Summarizer
	fallback summarizer.Summarizer
	scorer   *quality.Scorer
	logger   *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	runsTotal        metric.Int64Counter
	runDuration      metric.Float64Histogram
	compressionRatio metric.Float64Histogram
	informationLoss  metric.Float64Histogram
	chunkFailures    metric.Int64Counter
}

// New wires a pipeline from validated configuration. The logger may be nil.
func New(cfg Config, chunkCfg chunker.Config, sumCfg summarizer.Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	detector := critical.NewDetector(nil)
	ch, err := chunker.New(chunkCfg, detector, logger)
	if err != nil {
		return nil, err
	}
	primary, err := summarizer.ForStrategy(cfg.Strategy, sumCfg, detector)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		sumCfg:   sumCfg,
		chunker:  ch,
		detector: detector,
		primary:  primary,
		fallback: summarizer.NewExtractive(sumCfg, detector),
		scorer:   quality.NewScorer(sumCfg.TargetRatio),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		meter:    otel.Meter(meterName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return s, nil
}

// Run compresses the document end to end and returns the assembled report.
// On failure no partial report is returned.
func (s *Service) Run(ctx context.Context, paragraphs []document.Paragraph) (*document.Report, error) {
	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("strategy", string(s.cfg.Strategy)),
			attribute.Int("paragraphs", len(paragraphs)),
		),
	)
	defer span.End()
	start := time.Now()
	logger := s.logger.With(zap.String("run_id", runID))

	chunks, err := s.chunker.Chunk(paragraphs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	logger.Info("chunking complete",
		zap.Int("chunks", len(chunks)),
		zap.String("stage", "chunk"))

	summaries, err := s.summarizeChunks(ctx, logger, chunks)
	if err != nil {
		span.RecordError(err)
		s.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return nil, err
	}

	facts := s.extractFacts(chunks)
	sections := s.summarizeSections(ctx, logger, chunks, summaries, facts)
	docSummary := s.summarizeDocument(ctx, chunks, sections)

	metrics := s.scorer.Score(originalWords(chunks), docSummary, compactSummaries(summaries), sections, facts)

	report := &document.Report{
		RunID:           runID,
		GeneratedAt:     time.Now().UTC(),
		Metrics:         metrics,
		Chunks:          chunkRecords(chunks, summaries),
		Sections:        sections,
		DocumentSummary: docSummary,
		CriticalFacts:   facts,
	}

	elapsed := time.Since(start)
	s.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	s.runDuration.Record(ctx, elapsed.Seconds())
	s.compressionRatio.Record(ctx, metrics.CompressionRatio)
	s.informationLoss.Record(ctx, metrics.InformationLoss)
	span.SetAttributes(
		attribute.Float64("compression_ratio", metrics.CompressionRatio),
		attribute.Float64("information_loss", metrics.InformationLoss),
		attribute.Int("critical_facts", len(facts)),
	)
	logger.Info("run complete",
		zap.Duration("elapsed", elapsed),
		zap.Float64("compression_ratio", metrics.CompressionRatio),
		zap.Float64("information_loss", metrics.InformationLoss),
		zap.Int("critical_facts", len(facts)))

	return report, nil
}

// summarizeChunks runs stage 1 on a bounded worker pool. Each worker writes
// only its own slot, so results need no locking and keep chunk order. A nil
// slot marks a chunk skipped for having no usable sentences.
func (s *Service) summarizeChunks(ctx context.Context, logger *zap.Logger, chunks []document.Chunk) ([]*document.ChunkSummary, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.summarize_chunks",
		trace.WithAttributes(attribute.Int("chunks", len(chunks))))
	defer span.End()

	results := make([]*document.ChunkSummary, len(chunks))
	failures := make([]error, len(chunks))

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				failures[i] = ctx.Err()
				return
			}
			// select picks randomly when both cases are ready, so a
			// cancelled context must be re-checked after acquisition.
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return
			}

			results[i], failures[i] = s.summarizeChunk(ctx, logger, &chunks[i])
		}(i)
	}

	wg.Wait()

	for i, err := range failures {
		if err == nil {
			continue
		}
		s.chunkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", string(s.cfg.Strategy))))
		span.RecordError(err)
		return nil, fmt.Errorf("%w: chunk %d: %w", ErrRunAborted, chunks[i].ID, err)
	}
	return results, nil
}

// summarizeChunk compresses one chunk under the per-chunk deadline and the
// configured failure policy. A unit with no usable sentences is skipped, not
// failed: its critical facts are still extracted from the chunk itself.
func (s *Service) summarizeChunk(ctx context.Context, logger *zap.Logger, chunk *document.Chunk) (*document.ChunkSummary, error) {
	if s.cfg.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChunkTimeout)
		defer cancel()
	}

	req := summarizer.Request{
		Text:            chunk.Text,
		TargetRatio:     s.sumCfg.TargetRatio,
		CriticalContext: chunk.IsCritical(),
	}

	res, err := s.primary.Summarize(ctx, req)
	if err != nil {
		if errors.Is(err, summarizer.ErrEmptyUnit) {
			logger.Debug("chunk skipped: no usable sentences",
				zap.Int("chunk_id", chunk.ID),
				zap.String("stage", "chunk"))
			return nil, nil
		}

		var failure *summarizer.FailureError
		if errors.As(err, &failure) && s.cfg.FailurePolicy == PolicyFallback {
			logger.Warn("strategy failed, falling back to extractive",
				zap.Int("chunk_id", chunk.ID),
				zap.String("strategy", string(failure.Strategy)),
				zap.Error(failure.Err))
			res, err = s.fallback.Summarize(ctx, req)
			if err == nil {
				res.RemovalReason = fmt.Sprintf("%s (extractive fallback after %s failure)",
					res.RemovalReason, failure.Strategy)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("summarizing chunk %d (section %s): %w", chunk.ID, chunk.SectionID, err)
		}
	}

	return &document.ChunkSummary{
		ChunkID:           chunk.ID,
		SectionID:         chunk.SectionID,
		Page:              chunk.Page,
		SummaryText:       res.SummaryText,
		WordCount:         textutil.CountWords(res.SummaryText),
		StrategyUsed:      string(res.StrategyUsed),
		WhyIncluded:       res.WhyIncluded,
		RemovedContent:    res.RemovedContent,
		RemovalReason:     res.RemovalReason,
		Confidence:        res.Confidence,
		IsCritical:        chunk.IsCritical(),
		CriticalSentences: res.CriticalSentences,
	}, nil
}

// extractFacts emits one denormalized fact per flagged chunk, in chunk order.
// Facts come straight from chunks, never from summaries, so a dropped or
// skipped summary cannot lose one.
func (s *Service) extractFacts(chunks []document.Chunk) []document.CriticalFact {
	var facts []document.CriticalFact
	for i := range chunks {
		chunk := &chunks[i]
		if !chunk.IsCritical() {
			continue
		}
		sentence := s.firstCriticalSentence(chunk.Text)
		facts = append(facts, document.CriticalFact{
			Section:  chunk.SectionID,
			Page:     chunk.Page,
			Type:     document.FactTypeFor(chunk.Flags),
			Summary:  textutil.TruncateWords(sentence, factSummaryWords),
			Details:  chunk.Flags,
			ChunkID:  chunk.ID,
			Sentence: sentence,
		})
	}
	return facts
}

// firstCriticalSentence returns the first sentence carrying a critical
// signal, falling back to the first sentence, then the raw text.
func (s *Service) firstCriticalSentence(text string) string {
	sentences := textutil.SplitSentences(text)
	for _, sentence := range sentences {
		if s.detector.Detect(sentence).Any() {
			return sentence
		}
	}
	if len(sentences) > 0 {
		return sentences[0]
	}
	return text
}

// summarizeSections runs stage 2: chunk summaries grouped by section in
// first-appearance order, concatenated, and re-summarized extractively with
// the critical boost active.
func (s *Service) summarizeSections(ctx context.Context, logger *zap.Logger, chunks []document.Chunk, summaries []*document.ChunkSummary, facts []document.CriticalFact) []document.SectionSummary {
	factsBySection := make(map[string]int)
	for _, f := range facts {
		factsBySection[f.Section]++
	}

	var order []string
	members := make(map[string][]*document.ChunkSummary)
	for i := range chunks {
		id := chunks[i].SectionID
		if _, seen := members[id]; !seen {
			order = append(order, id)
		}
		if summaries[i] != nil {
			members[id] = append(members[id], summaries[i])
		} else if _, seen := members[id]; !seen {
			members[id] = nil
		}
	}

	var sections []document.SectionSummary
	for _, id := range order {
		group := members[id]
		if len(group) == 0 {
			continue
		}

		var joined string
		chunkIDs := make([]int, 0, len(group))
		confSum := 0.0
		for _, cs := range group {
			if joined != "" {
				joined += " "
			}
			joined += cs.SummaryText
			chunkIDs = append(chunkIDs, cs.ChunkID)
			confSum += cs.Confidence
		}

		res, err := s.fallback.Summarize(ctx, summarizer.Request{
			Text:            joined,
			TargetRatio:     sectionRatio,
			CriticalContext: true,
		})
		if err != nil {
			logger.Debug("section skipped: no usable sentences",
				zap.String("section_id", id),
				zap.String("stage", "section"))
			continue
		}

		sections = append(sections, document.SectionSummary{
			SectionID:         id,
			SummaryText:       res.SummaryText,
			WordCount:         textutil.CountWords(res.SummaryText),
			SourceChunkIDs:    chunkIDs,
			CriticalFactCount: factsBySection[id],
			Confidence:        confSum / float64(len(group)),
		})
	}
	return sections
}

// summarizeDocument runs stage 3: section summaries concatenated in order and
// compressed under the hard max_length word ceiling.
func (s *Service) summarizeDocument(ctx context.Context, chunks []document.Chunk, sections []document.SectionSummary) document.DocumentSummary {
	original := originalWords(chunks)

	var joined string
	ids := make([]string, 0, len(sections))
	confSum := 0.0
	for _, sec := range sections {
		if joined != "" {
			joined += " "
		}
		joined += sec.SummaryText
		ids = append(ids, sec.SectionID)
		confSum += sec.Confidence
	}

	summary := document.DocumentSummary{
		SourceSectionIDs:  ids,
		OriginalWordCount: original,
	}
	if len(sections) == 0 {
		return summary
	}

	res, err := s.fallback.Summarize(ctx, summarizer.Request{
		Text:            joined,
		TargetRatio:     1.0,
		MaxWords:        s.cfg.MaxLength,
		CriticalContext: true,
	})
	text := joined
	if err == nil {
		text = res.SummaryText
	}
	// Greedy selection allows one sentence of slack; the ceiling is hard.
	text = textutil.TruncateWords(text, s.cfg.MaxLength)

	summary.SummaryText = text
	summary.FinalWordCount = textutil.CountWords(text)
	summary.Confidence = confSum / float64(len(sections))
	return summary
}

func originalWords(chunks []document.Chunk) int {
	total := 0
	for i := range chunks {
		total += chunks[i].SourceWords()
	}
	return total
}

// compactSummaries drops the nil slots of skipped chunks for scoring.
func compactSummaries(summaries []*document.ChunkSummary) []document.ChunkSummary {
	out := make([]document.ChunkSummary, 0, len(summaries))
	for _, cs := range summaries {
		if cs != nil {
			out = append(out, *cs)
		}
	}
	return out
}

func chunkRecords(chunks []document.Chunk, summaries []*document.ChunkSummary) []document.ChunkRecord {
	records := make([]document.ChunkRecord, len(chunks))
	for i := range chunks {
		records[i] = document.ChunkRecord{Chunk: chunks[i], Summary: summaries[i]}
	}
	return records
}

// initMetrics registers the run-level instruments.
func (s *Service) initMetrics() error {
	var err error

	s.runsTotal, err = s.meter.Int64Counter(
		"pipeline.runs_total",
		metric.WithDescription("Total number of compression runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs counter: %w", err)
	}

	s.runDuration, err = s.meter.Float64Histogram(
		"pipeline.run_duration_seconds",
		metric.WithDescription("End-to-end run duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	s.compressionRatio, err = s.meter.Float64Histogram(
		"pipeline.compression_ratio",
		metric.WithDescription("Achieved compression ratios"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.7, 0.9, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create ratio histogram: %w", err)
	}

	s.informationLoss, err = s.meter.Float64Histogram(
		"pipeline.information_loss",
		metric.WithDescription("Composite information loss scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9),
	)
	if err != nil {
		return fmt.Errorf("failed to create loss histogram: %w", err)
	}

	s.chunkFailures, err = s.meter.Int64Counter(
		"pipeline.chunk_failures_total",
		metric.WithDescription("Chunk summarizations that failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create failure counter: %w", err)
	}

	return nil
}
