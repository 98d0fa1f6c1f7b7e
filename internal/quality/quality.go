// Package quality computes the composite quality metrics for a compression
// run: compression ratio, critical-preservation rate, and the weighted
// information-loss score.
package quality

import (
	"math"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/document"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

// Loss weights: compression deviation, confidence, critical preservation.
const (
	weightCompression  = 0.3
	weightConfidence   = 0.4
	weightPreservation = 0.3
)

// targetBand is the tolerance around the target ratio inside which the
// compression term contributes zero loss.
const targetBand = 0.05

// Scorer derives QualityMetrics from run artifacts.
type Scorer struct {
	// TargetRatio is the configured target compression ratio (final/original).
	TargetRatio float64
}

// NewScorer creates a scorer for the given target ratio. A non-positive
// target falls back to 0.35.
func NewScorer(targetRatio float64) *Scorer {
	if targetRatio <= 0 || targetRatio > 1 {
		targetRatio = 0.35
	}
	return &Scorer{TargetRatio: targetRatio}
}

// Score computes the metrics snapshot for a completed run.
//
// The compression term of the loss is |ratio - target| / max(target, 1-target),
// zero inside the ±0.05 target band: a ratio near the configured target is
// density retention, not loss, and loss grows monotonically as the ratio
// deviates from target in either direction. The other terms are
// 1 - mean(confidence) and 1 - critical_preservation, weighted 0.3/0.4/0.3
// and clamped to [0, 1]. Lower is better.
func (s *Scorer) Score(
	originalWords int,
	docSummary document.DocumentSummary,
	chunkSummaries []document.ChunkSummary,
	sections []document.SectionSummary,
	facts []document.CriticalFact,
) document.QualityMetrics {
	ratio := s.compressionRatio(originalWords, docSummary.FinalWordCount)
	meanConf := meanConfidence(chunkSummaries)
	preservation := s.CriticalPreservation(facts, chunkSummaries, sections, docSummary)

	loss := weightCompression*s.compressionTerm(ratio) +
		weightConfidence*(1-meanConf) +
		weightPreservation*(1-preservation)

	return document.QualityMetrics{
		OriginalWords:        originalWords,
		FinalWords:           docSummary.FinalWordCount,
		CompressionRatio:     ratio,
		CriticalPreservation: preservation,
		InformationLoss:      clamp01(loss),
		MeanConfidence:       meanConf,
		TotalChunks:          len(chunkSummaries),
		CriticalFactCount:    len(facts),
	}
}

// compressionRatio is final/original clamped to (0, 1].
func (s *Scorer) compressionRatio(originalWords, finalWords int) float64 {
	if originalWords <= 0 || finalWords <= 0 {
		return 1.0
	}
	ratio := float64(finalWords) / float64(originalWords)
	if ratio > 1 {
		return 1.0
	}
	return ratio
}

// compressionTerm maps the achieved ratio to [0, 1] loss contribution.
func (s *Scorer) compressionTerm(ratio float64) float64 {
	deviation := math.Abs(ratio - s.TargetRatio)
	if deviation <= targetBand {
		return 0
	}
	scale := math.Max(s.TargetRatio, 1-s.TargetRatio)
	return clamp01(deviation / scale)
}

// CriticalPreservation is the fraction of critical facts whose source
// sentence is recoverable, near-verbatim, from its own chunk summary, its
// section summary, or the document summary. A fact with zero matches counts
// as zero and is never excluded from the denominator.
func (s *Scorer) CriticalPreservation(
	facts []document.CriticalFact,
	chunkSummaries []document.ChunkSummary,
	sections []document.SectionSummary,
	docSummary document.DocumentSummary,
) float64 {
	if len(facts) == 0 {
		return 1.0
	}

	chunkByID := make(map[int]*document.ChunkSummary, len(chunkSummaries))
	for i := range chunkSummaries {
		chunkByID[chunkSummaries[i].ChunkID] = &chunkSummaries[i]
	}
	sectionByID := make(map[string]*document.SectionSummary, len(sections))
	for i := range sections {
		sectionByID[sections[i].SectionID] = &sections[i]
	}
	docNorm := textutil.Normalize(docSummary.SummaryText)

	preserved := 0
	for _, fact := range facts {
		sentence := textutil.Normalize(fact.Sentence)
		if sentence == "" {
			continue
		}
		if cs, ok := chunkByID[fact.ChunkID]; ok {
			if contains(textutil.Normalize(cs.SummaryText), sentence) {
				preserved++
				continue
			}
		}
		if sec, ok := sectionByID[fact.Section]; ok {
			if contains(textutil.Normalize(sec.SummaryText), sentence) {
				preserved++
				continue
			}
		}
		if contains(docNorm, sentence) {
			preserved++
		}
	}

	return float64(preserved) / float64(len(facts))
}

func contains(haystack, needle string) bool {
	return needle != "" && haystack != "" && strings.Contains(haystack, needle)
}

func meanConfidence(summaries []document.ChunkSummary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	sum := 0.0
	for _, cs := range summaries {
		sum += cs.Confidence
	}
	return sum / float64(len(summaries))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
