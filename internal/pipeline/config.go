package pipeline

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/compressd/internal/summarizer"
)

// FailurePolicy decides what a run does when a chunk summarization fails.
type FailurePolicy string

const (
	// PolicyFailFast aborts the run on the first strategy failure. No
	// partial report is emitted.
	PolicyFailFast FailurePolicy = "fail-fast"

	// PolicyFallback retries the failed chunk with the extractive strategy
	// and notes the substitution in the removal reason.
	PolicyFallback FailurePolicy = "fallback"
)

// Valid reports whether p names a supported policy.
func (p FailurePolicy) Valid() bool {
	return p == PolicyFailFast || p == PolicyFallback
}

var (
	// ErrNoWorkers signals a non-positive worker count.
	ErrNoWorkers = errors.New("workers must be positive")

	// ErrUnknownFailurePolicy signals an unrecognized failure policy name.
	ErrUnknownFailurePolicy = errors.New("unknown failure policy")

	// ErrMaxLengthNonPositive signals a non-positive document summary bound.
	ErrMaxLengthNonPositive = errors.New("max_length must be positive")

	// ErrEmptyDocument signals input that produced no chunks at all.
	ErrEmptyDocument = errors.New("document produced no chunks")

	// ErrRunAborted wraps the chunk failure that stopped a fail-fast run.
	ErrRunAborted = errors.New("run aborted")
)

// Config controls a pipeline run.
type Config struct {
	// Strategy is the summarization strategy for chunk summaries.
	Strategy summarizer.Strategy `koanf:"strategy" json:"strategy"`

	// Workers bounds stage-1 parallelism.
	Workers int `koanf:"workers" json:"workers"`

	// FailurePolicy selects fail-fast or extractive fallback.
	FailurePolicy FailurePolicy `koanf:"failure_policy" json:"failure_policy"`

	// MaxLength is the hard word ceiling on the document summary.
	MaxLength int `koanf:"max_length" json:"max_length"`

	// ChunkTimeout bounds each chunk summarization. Zero disables the
	// per-chunk deadline.
	ChunkTimeout time.Duration `koanf:"chunk_timeout" json:"chunk_timeout"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:      summarizer.StrategyExtractive,
		Workers:       4,
		FailurePolicy: PolicyFallback,
		MaxLength:     300,
		ChunkTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration, returning the sentinel for the first
// violated constraint.
func (c Config) Validate() error {
	if !c.Strategy.Valid() {
		return summarizer.ErrUnknownStrategy
	}
	if c.Workers <= 0 {
		return ErrNoWorkers
	}
	if !c.FailurePolicy.Valid() {
		return ErrUnknownFailurePolicy
	}
	if c.MaxLength <= 0 {
		return ErrMaxLengthNonPositive
	}
	return nil
}
