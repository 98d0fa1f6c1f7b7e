// Package document defines the data model shared by every stage of the
// compression pipeline: source paragraphs and chunks, the three summary
// levels, extracted critical facts, quality metrics, and the exported report.
//
// All types are immutable after creation. Downstream stages reference chunks
// by id rather than holding pointers into earlier stages.
package document

import (
	"time"

	"github.com/fyrsmithlabs/compressd/internal/critical"
)

// Paragraph is the input contract from the ingestion collaborator:
// one paragraph of body text tagged with the page it starts on.
type Paragraph struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Chunk is the smallest unit of source text carried through the pipeline.
type Chunk struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	SectionID string `json:"section_id"`
	Page      int    `json:"page"`

	// WordCount includes the overlap words prepended from the previous
	// chunk; OverlapWords records how many of them there are so metrics
	// can exclude them from original-word accounting.
	WordCount    int `json:"word_count"`
	OverlapWords int `json:"overlap_words"`

	Flags critical.Flags `json:"critical_flags"`
}

// IsCritical reports whether any critical flag is set on the chunk.
func (c *Chunk) IsCritical() bool {
	return c.Flags.Any()
}

// SourceWords returns the number of words the chunk contributes to the
// original document, excluding the overlap carried from the previous chunk.
func (c *Chunk) SourceWords() int {
	return c.WordCount - c.OverlapWords
}

// ChunkSummary is the output of compressing one chunk, including the
// explainability record for the compression decision.
type ChunkSummary struct {
	ChunkID     int    `json:"chunk_id"`
	SectionID   string `json:"section_id"`
	Page        int    `json:"page"`
	SummaryText string `json:"summary_text"`
	WordCount   int    `json:"word_count"`

	StrategyUsed   string   `json:"strategy_used"`
	WhyIncluded    string   `json:"why_included"`
	RemovedContent []string `json:"removed_content"`
	RemovalReason  string   `json:"removal_reason"`
	Confidence     float64  `json:"confidence"`
	IsCritical     bool     `json:"is_critical"`

	// CriticalSentences holds the sentences that carried the critical
	// signal in the source chunk, case-normalized. Used by the scorer to
	// verify the retention invariant.
	CriticalSentences []string `json:"critical_sentences,omitempty"`
}

// SectionSummary aggregates every chunk summary sharing a section id.
type SectionSummary struct {
	SectionID         string  `json:"section_id"`
	SummaryText       string  `json:"summary_text"`
	WordCount         int     `json:"word_count"`
	SourceChunkIDs    []int   `json:"source_chunk_ids"`
	CriticalFactCount int     `json:"critical_fact_count"`
	Confidence        float64 `json:"confidence"`
}

// DocumentSummary is the single top-level result of a run.
type DocumentSummary struct {
	SummaryText       string   `json:"summary_text"`
	SourceSectionIDs  []string `json:"source_section_ids"`
	OriginalWordCount int      `json:"original_word_count"`
	FinalWordCount    int      `json:"final_word_count"`
	Confidence        float64  `json:"confidence"`
}

// FactType classifies a critical fact by the strongest signal it carries.
type FactType string

const (
	FactTypeException     FactType = "exception"
	FactTypeRisk          FactType = "risk"
	FactTypeContradiction FactType = "contradiction"
	FactTypeNumeric       FactType = "numeric"
)

// CriticalFact is a denormalized record surfaced for every flagged chunk,
// independent of any length pressure on the summary text. This list is the
// mechanism behind the 100%-retention contract: facts are never pruned.
type CriticalFact struct {
	Section string         `json:"section"`
	Page    int            `json:"page"`
	Type    FactType       `json:"type"`
	Summary string         `json:"summary"`
	Details critical.Flags `json:"details"`
	ChunkID int            `json:"chunk_id"`

	// Sentence is the first source sentence carrying the critical signal,
	// retained verbatim for preservation scoring.
	Sentence string `json:"sentence"`
}

// FactTypeFor maps a flag set to the strongest fact type it represents.
// Priority: exception > risk > contradiction > numeric.
func FactTypeFor(f critical.Flags) FactType {
	switch {
	case f.HasException:
		return FactTypeException
	case f.HasRisk:
		return FactTypeRisk
	case f.HasContradiction:
		return FactTypeContradiction
	default:
		return FactTypeNumeric
	}
}

// QualityMetrics is a stateless snapshot derived from a completed run.
type QualityMetrics struct {
	OriginalWords        int     `json:"original_words"`
	FinalWords           int     `json:"final_words"`
	CompressionRatio     float64 `json:"compression_ratio"`
	CriticalPreservation float64 `json:"critical_preservation"`
	InformationLoss      float64 `json:"information_loss"`
	MeanConfidence       float64 `json:"mean_confidence"`
	TotalChunks          int     `json:"total_chunks"`
	CriticalFactCount    int     `json:"critical_fact_count"`
}

// ChunkRecord joins a chunk with its summary for export.
type ChunkRecord struct {
	Chunk   Chunk         `json:"chunk"`
	Summary *ChunkSummary `json:"summary,omitempty"`
}

// Report is the exported record consumed by the UI/export collaborator.
// Field names and nesting are stable across runs with identical input and
// configuration.
type Report struct {
	RunID           string           `json:"run_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Metrics         QualityMetrics   `json:"metrics"`
	Chunks          []ChunkRecord    `json:"chunks"`
	Sections        []SectionSummary `json:"sections"`
	DocumentSummary DocumentSummary  `json:"document_summary"`
	CriticalFacts   []CriticalFact   `json:"critical_facts"`
}
