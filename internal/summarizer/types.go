// Package summarizer compresses a unit of text into a shorter summary using a
// selectable strategy, attaching an explainability record to every
// compression decision.
//
// The four strategies form a closed set behind one contract; new strategies
// are added by extending the set, not by subclassing.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Strategy selects a summarization algorithm.
type Strategy string

const (
	// StrategyExtractive selects high-scoring sentences verbatim.
	StrategyExtractive Strategy = "extractive"
	// StrategyAbstractive generates a paraphrase via the Claude API.
	StrategyAbstractive Strategy = "abstractive"
	// StrategyHybrid keeps critical sentences verbatim and paraphrases the rest.
	StrategyHybrid Strategy = "hybrid"
	// StrategyCritical is extractive with a looser ratio and a mandatory
	// re-scan that appends any critical sentence missing from the draft.
	StrategyCritical Strategy = "critical"
)

// Strategies lists the supported strategy names.
func Strategies() []Strategy {
	return []Strategy{StrategyExtractive, StrategyAbstractive, StrategyHybrid, StrategyCritical}
}

// Valid reports whether s names a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyExtractive, StrategyAbstractive, StrategyHybrid, StrategyCritical:
		return true
	}
	return false
}

var (
	// ErrEmptyUnit signals a unit with zero usable sentences after boundary
	// splitting. Callers skip the unit rather than aggregating it.
	ErrEmptyUnit = errors.New("unit has no usable sentences")

	// ErrUnknownStrategy signals an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown summarization strategy")

	// ErrModelUnavailable signals that the abstractive model cannot be
	// reached or is not configured.
	ErrModelUnavailable = errors.New("abstractive model unavailable")
)

// FailureError is a strategy-specific summarization failure. The run policy
// decides between fail-fast and falling back to the extractive strategy.
type FailureError struct {
	Strategy Strategy
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("summarization failed (strategy=%s): %v", e.Strategy, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Request describes one unit of text to compress.
type Request struct {
	// Text is the unit to summarize.
	Text string

	// TargetRatio is the fraction of source words to keep, in (0, 1].
	TargetRatio float64

	// MaxWords, when positive, is a hard ceiling on the summary length.
	MaxWords int

	// CriticalContext marks a unit whose source carried critical flags,
	// enabling sentence-level boosting.
	CriticalContext bool
}

// Result is the output of one compression decision, including the
// explainability record.
type Result struct {
	SummaryText  string
	StrategyUsed Strategy

	// Explainability record.
	WhyIncluded    string
	RemovedContent []string
	RemovalReason  string
	Confidence     float64

	// CriticalSentences are the source sentences that carried a critical
	// signal, verbatim, regardless of whether they survived compression.
	CriticalSentences []string
}

// Summarizer is the uniform contract implemented by every strategy.
type Summarizer interface {
	Strategy() Strategy
	Summarize(ctx context.Context, req Request) (*Result, error)
}

// Config holds strategy configuration.
type Config struct {
	// TargetRatio is the default fraction of words to keep per unit.
	TargetRatio float64 `koanf:"target_ratio" json:"target_ratio"`

	// Anthropic API settings for the abstractive strategy.
	AnthropicAPIKey string        `koanf:"anthropic_api_key" json:"-"`
	Model           string        `koanf:"model" json:"model"`
	BaseURL         string        `koanf:"base_url" json:"base_url"`
	RequestTimeout  time.Duration `koanf:"request_timeout" json:"request_timeout"`
}

// DefaultConfig returns the default strategy configuration.
func DefaultConfig() Config {
	return Config{
		TargetRatio:    0.35,
		Model:          "claude-3-haiku-20240307",
		RequestTimeout: 30 * time.Second,
	}
}

// criticalRatio is the looser compression ratio used by StrategyCritical.
const criticalRatio = 0.4

// minCompressWords is the unit size below which compression is meaningless;
// such units are returned unchanged as long as they fit the hard ceiling.
const minCompressWords = 20

// returnUnchanged reports whether the unit should skip compression entirely.
func returnUnchanged(sourceWords, targetWords, maxWords int) bool {
	if sourceWords <= targetWords {
		return true
	}
	return sourceWords < minCompressWords && (maxWords <= 0 || sourceWords <= maxWords)
}
