package summarizer

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/compressd/internal/critical"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

// criticalBoost multiplies the score of a sentence flagged by the detector.
const criticalBoost = 3.0

// Extractive selects high-scoring sentences verbatim. Scores are
// term-frequency/inverse-sentence-frequency weights against the unit's own
// vocabulary; flagged sentences are boosted. Selected sentences are emitted
// in original order, never score order.
type Extractive struct {
	detector *critical.Detector
	cfg      Config
}

// NewExtractive creates the extractive strategy.
func NewExtractive(cfg Config, detector *critical.Detector) *Extractive {
	if detector == nil {
		detector = critical.NewDetector(nil)
	}
	return &Extractive{detector: detector, cfg: cfg}
}

// Strategy implements Summarizer.
func (e *Extractive) Strategy() Strategy { return StrategyExtractive }

// Summarize implements Summarizer.
func (e *Extractive) Summarize(ctx context.Context, req Request) (*Result, error) {
	sel, err := e.run(req, req.TargetRatio)
	if err != nil {
		return nil, err
	}
	return sel.result(StrategyExtractive), nil
}

// scoredSentence is one sentence with its selection metadata.
type scoredSentence struct {
	index    int
	text     string
	words    int
	score    float64
	critical bool
}

// selection is the intermediate output of extractive scoring, reused by the
// critical and hybrid strategies.
type selection struct {
	sentences   []scoredSentence // all sentences, source order
	selected    []scoredSentence // chosen sentences, source order
	sourceWords int
	targetWords int
	maxScore    float64
	unchanged   bool
}

// run scores and selects sentences for the request at the given ratio.
func (e *Extractive) run(req Request, ratio float64) (*selection, error) {
	sentences := textutil.SplitSentences(req.Text)
	if len(sentences) == 0 {
		return nil, ErrEmptyUnit
	}

	sourceWords := textutil.CountWords(req.Text)
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultConfig().TargetRatio
	}
	target := int(float64(sourceWords) * ratio)
	if req.MaxWords > 0 && target > req.MaxWords {
		target = req.MaxWords
	}
	if target < 1 {
		target = 1
	}

	scored := e.scoreSentences(sentences)
	maxScore := 0.0
	for _, s := range scored {
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	sel := &selection{
		sentences:   scored,
		sourceWords: sourceWords,
		targetWords: target,
		maxScore:    maxScore,
	}

	// A unit already shorter than the target, or too short to compress
	// meaningfully, is returned unchanged.
	if returnUnchanged(sourceWords, target, req.MaxWords) {
		sel.selected = scored
		sel.unchanged = true
		return sel, nil
	}

	sel.selected = selectGreedy(scored, target)
	return sel, nil
}

// scoreSentences computes tf-isf scores with critical boosting.
func (e *Extractive) scoreSentences(sentences []string) []scoredSentence {
	// Sentence frequency per term, over the unit's own vocabulary.
	df := make(map[string]int)
	tokenized := make([][]string, len(sentences))
	for i, s := range sentences {
		tokenized[i] = textutil.Words(s)
		seen := make(map[string]struct{}, len(tokenized[i]))
		for _, w := range tokenized[i] {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			df[w]++
		}
	}

	n := float64(len(sentences))
	scored := make([]scoredSentence, len(sentences))
	for i, s := range sentences {
		score := 0.0
		for _, w := range tokenized[i] {
			score += math.Log(1 + n/float64(df[w]))
		}
		if len(tokenized[i]) > 0 {
			score /= float64(len(tokenized[i]))
		}

		isCritical := e.detector.Detect(s).Any()
		if isCritical {
			score *= criticalBoost
		}

		scored[i] = scoredSentence{
			index:    i,
			text:     s,
			words:    textutil.CountWords(s),
			score:    score,
			critical: isCritical,
		}
	}
	return scored
}

// selectGreedy picks highest-scoring sentences until the cumulative word
// count reaches target, then restores original order. Ties break on source
// position so runs are deterministic.
func selectGreedy(scored []scoredSentence, targetWords int) []scoredSentence {
	ranked := make([]scoredSentence, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	var selected []scoredSentence
	words := 0
	for _, s := range ranked {
		if words+s.words > targetWords {
			continue
		}
		selected = append(selected, s)
		words += s.words
	}

	// Never emit an empty summary: keep the single best sentence even when
	// it overshoots the target.
	if len(selected) == 0 && len(ranked) > 0 {
		selected = append(selected, ranked[0])
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].index < selected[j].index })
	return selected
}

// result assembles the explainability record for a completed selection.
func (s *selection) result(used Strategy) *Result {
	var critSentences []string
	for _, sc := range s.sentences {
		if sc.critical {
			critSentences = append(critSentences, sc.text)
		}
	}

	if s.unchanged {
		return &Result{
			SummaryText:       s.text(),
			StrategyUsed:      used,
			WhyIncluded:       "unit shorter than target length; returned unchanged",
			RemovedContent:    nil,
			RemovalReason:     "nothing removed",
			Confidence:        1.0,
			CriticalSentences: critSentences,
		}
	}

	return &Result{
		SummaryText:       s.text(),
		StrategyUsed:      used,
		WhyIncluded:       s.whyIncluded(),
		RemovedContent:    s.removedContent(),
		RemovalReason:     "sentences scoring below the term-frequency selection threshold were dropped; original order preserved",
		Confidence:        s.confidence(),
		CriticalSentences: critSentences,
	}
}

func (s *selection) text() string {
	parts := make([]string, len(s.selected))
	for i, sc := range s.selected {
		parts[i] = sc.text
	}
	return strings.Join(parts, " ")
}

func (s *selection) selectedWords() int {
	words := 0
	for _, sc := range s.selected {
		words += sc.words
	}
	return words
}

// confidence is the mean normalized score of selected sentences.
func (s *selection) confidence() float64 {
	if len(s.selected) == 0 || s.maxScore == 0 {
		return 0
	}
	sum := 0.0
	for _, sc := range s.selected {
		sum += sc.score / s.maxScore
	}
	c := sum / float64(len(s.selected))
	if c > 1 {
		c = 1
	}
	return c
}

func (s *selection) whyIncluded() string {
	crit := 0
	for _, sc := range s.selected {
		if sc.critical {
			crit++
		}
	}
	if crit > 0 {
		return "highest term-frequency sentences selected; critical sentences boosted into the summary"
	}
	return "highest term-frequency sentences selected to meet the target length"
}

// removedContent infers coarse categories for the dropped sentences,
// following the explainability vocabulary of the compression report.
func (s *selection) removedContent() []string {
	dropped := len(s.sentences) - len(s.selected)
	if dropped <= 0 {
		return nil
	}

	var categories []string
	droppedWords := s.sourceWords - s.selectedWords()

	lowered := strings.ToLower(s.droppedText())
	if strings.Contains(lowered, "example") || strings.Contains(lowered, "for instance") {
		categories = append(categories, "detailed examples and case studies")
	}
	if dropped > len(s.selected) {
		categories = append(categories, "elaborative explanations and context")
	}
	if droppedWords > 2*s.selectedWords() {
		categories = append(categories, "narrative background")
	}
	if len(categories) == 0 {
		categories = []string{"non-critical supporting details"}
	}
	return categories
}

func (s *selection) droppedText() string {
	kept := make(map[int]struct{}, len(s.selected))
	for _, sc := range s.selected {
		kept[sc.index] = struct{}{}
	}
	var parts []string
	for _, sc := range s.sentences {
		if _, ok := kept[sc.index]; !ok {
			parts = append(parts, sc.text)
		}
	}
	return strings.Join(parts, " ")
}

var _ Summarizer = (*Extractive)(nil)
