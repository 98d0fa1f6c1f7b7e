package summarizer

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/critical"
)

// Hybrid ranks sentences extractively, keeps the selected critical sentences
// verbatim, and runs an abstractive pass over the non-critical selected span
// only. When the model is unavailable the non-critical span stays verbatim
// and the fallback is recorded in the removal reason.
type Hybrid struct {
	extractive  *Extractive
	abstractive Summarizer
}

// NewHybrid creates the hybrid strategy.
func NewHybrid(cfg Config, detector *critical.Detector) *Hybrid {
	return &Hybrid{
		extractive:  NewExtractive(cfg, detector),
		abstractive: NewAbstractive(cfg, detector),
	}
}

// NewHybridWithAbstractive injects the abstractive stage, which lets tests
// substitute a mock model.
func NewHybridWithAbstractive(cfg Config, detector *critical.Detector, abstractive Summarizer) *Hybrid {
	return &Hybrid{
		extractive:  NewExtractive(cfg, detector),
		abstractive: abstractive,
	}
}

// Strategy implements Summarizer.
func (h *Hybrid) Strategy() Strategy { return StrategyHybrid }

// Summarize implements Summarizer.
func (h *Hybrid) Summarize(ctx context.Context, req Request) (*Result, error) {
	sel, err := h.extractive.run(req, req.TargetRatio)
	if err != nil {
		return nil, err
	}
	if sel.unchanged {
		return sel.result(StrategyHybrid), nil
	}

	var criticalSel, plainSel []scoredSentence
	for _, sc := range sel.selected {
		if sc.critical {
			criticalSel = append(criticalSel, sc)
		} else {
			plainSel = append(plainSel, sc)
		}
	}

	res := sel.result(StrategyHybrid)
	if len(plainSel) == 0 {
		// Nothing to paraphrase; the whole selection is critical.
		return res, nil
	}

	plainText := joinSentences(plainSel)
	plainBudget := 0
	for _, sc := range plainSel {
		plainBudget += sc.words
	}

	para, err := h.abstractive.Summarize(ctx, Request{
		Text:        plainText,
		TargetRatio: 0.8,
		MaxWords:    plainBudget,
	})
	if err != nil {
		var failure *FailureError
		if !errors.As(err, &failure) && !errors.Is(err, ErrEmptyUnit) {
			return nil, err
		}
		res.RemovalReason = "abstractive pass unavailable; non-critical span kept verbatim (fallback to extractive)"
		return res, nil
	}

	res.SummaryText = composeHybrid(criticalSel, para.SummaryText)
	res.WhyIncluded = "critical sentences kept verbatim; non-critical span paraphrased"
	res.RemovedContent = append(res.RemovedContent, "non-critical span paraphrased rather than quoted")
	res.RemovalReason = "extractive selection followed by an abstractive pass over the non-critical span only"
	res.Confidence = (res.Confidence + para.Confidence) / 2
	return res, nil
}

// composeHybrid places the verbatim critical sentences first in source
// order, followed by the paraphrased non-critical span.
func composeHybrid(criticalSel []scoredSentence, paraphrase string) string {
	sort.Slice(criticalSel, func(i, j int) bool { return criticalSel[i].index < criticalSel[j].index })
	parts := make([]string, 0, len(criticalSel)+1)
	for _, sc := range criticalSel {
		parts = append(parts, sc.text)
	}
	if paraphrase != "" {
		parts = append(parts, paraphrase)
	}
	return strings.Join(parts, " ")
}

func joinSentences(sel []scoredSentence) string {
	parts := make([]string, len(sel))
	for i, sc := range sel {
		parts[i] = sc.text
	}
	return strings.Join(parts, " ")
}

var _ Summarizer = (*Hybrid)(nil)
