package summarizer

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/critical"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

// CriticalPreserving is extractive selection at a looser ratio with a
// mandatory post-process: the original text is re-scanned for critical
// sentences missing from the draft, which are appended, then the result is
// re-checked against the length ceiling with lowest-scoring non-critical
// sentences trimmed first.
type CriticalPreserving struct {
	extractive *Extractive
}

// NewCriticalPreserving creates the critical-preserving strategy.
func NewCriticalPreserving(cfg Config, detector *critical.Detector) *CriticalPreserving {
	return &CriticalPreserving{extractive: NewExtractive(cfg, detector)}
}

// Strategy implements Summarizer.
func (c *CriticalPreserving) Strategy() Strategy { return StrategyCritical }

// Summarize implements Summarizer.
func (c *CriticalPreserving) Summarize(ctx context.Context, req Request) (*Result, error) {
	sel, err := c.extractive.run(req, criticalRatio)
	if err != nil {
		return nil, err
	}
	if sel.unchanged {
		return sel.result(StrategyCritical), nil
	}

	appended := c.appendMissingCritical(sel)
	trimmed := c.enforceCeiling(sel, req.MaxWords)

	res := sel.result(StrategyCritical)
	switch {
	case appended > 0 && trimmed > 0:
		res.RemovalReason = "critical sentences re-appended after selection; lowest-scoring non-critical sentences trimmed to fit the length ceiling"
	case appended > 0:
		res.RemovalReason = "critical sentences missing from the draft were re-appended"
	case trimmed > 0:
		res.RemovalReason = "lowest-scoring non-critical sentences trimmed to fit the length ceiling"
	}
	if appended > 0 || len(res.CriticalSentences) > 0 {
		res.WhyIncluded = "critical-preserving selection: every flagged sentence is guaranteed a place in the summary"
	}
	return res, nil
}

// appendMissingCritical adds every critical sentence absent from the draft,
// keeping source order, and returns how many were added.
func (c *CriticalPreserving) appendMissingCritical(sel *selection) int {
	draft := textutil.Normalize(sel.text())
	selected := make(map[int]struct{}, len(sel.selected))
	for _, sc := range sel.selected {
		selected[sc.index] = struct{}{}
	}

	added := 0
	for _, sc := range sel.sentences {
		if !sc.critical {
			continue
		}
		if _, ok := selected[sc.index]; ok {
			continue
		}
		if strings.Contains(draft, textutil.Normalize(sc.text)) {
			continue
		}
		sel.selected = append(sel.selected, sc)
		added++
	}
	if added > 0 {
		sort.Slice(sel.selected, func(i, j int) bool {
			return sel.selected[i].index < sel.selected[j].index
		})
	}
	return added
}

// enforceCeiling trims lowest-scoring non-critical sentences until the
// summary fits maxWords. Critical sentences are never trimmed.
func (c *CriticalPreserving) enforceCeiling(sel *selection, maxWords int) int {
	if maxWords <= 0 {
		return 0
	}

	trimmed := 0
	for sel.selectedWords() > maxWords {
		victim := -1
		for i, sc := range sel.selected {
			if sc.critical {
				continue
			}
			if victim == -1 || sc.score < sel.selected[victim].score {
				victim = i
			}
		}
		if victim == -1 {
			// Only critical sentences remain; the retention invariant
			// outranks the ceiling.
			break
		}
		sel.selected = append(sel.selected[:victim], sel.selected[victim+1:]...)
		trimmed++
	}
	return trimmed
}

var _ Summarizer = (*CriticalPreserving)(nil)
