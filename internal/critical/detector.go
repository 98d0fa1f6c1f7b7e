// Package critical provides pattern-based detection of decision-critical
// content: exceptions, risks, contradictions, and numeric or date signals.
//
// Detection is a pure function over a declarative table of (category, pattern)
// pairs consumed by one matcher, so the rule set can later be replaced with a
// learned classifier without touching call sites.
package critical

import (
	"regexp"
)

// Category classifies a detection pattern.
type Category string

const (
	CategoryException     Category = "exception"
	CategoryRisk          Category = "risk"
	CategoryContradiction Category = "contradiction"
	CategoryNumeric       Category = "numeric"
)

// Pattern is one entry in the detection table.
type Pattern struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Regex    string   `json:"regex"`
}

// Flags records which critical categories matched a unit of text.
type Flags struct {
	HasException     bool `json:"has_exception"`
	HasRisk          bool `json:"has_risk"`
	HasContradiction bool `json:"has_contradiction"`
	HasNumbers       bool `json:"has_numbers"`
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return f.HasException || f.HasRisk || f.HasContradiction || f.HasNumbers
}

// DefaultPatterns returns the fixed lexical rule set used for detection.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Exception markers
		{Category: CategoryException, Name: "unless", Regex: `(?i)\bunless\b`},
		{Category: CategoryException, Name: "only_if", Regex: `(?i)\bonly if\b`},
		{Category: CategoryException, Name: "however", Regex: `(?i)\bhowever\b`},
		{Category: CategoryException, Name: "except", Regex: `(?i)\bexcept(?:ion)?\b`},
		{Category: CategoryException, Name: "provided_that", Regex: `(?i)\bprovided that\b`},

		// Risk markers
		{Category: CategoryRisk, Name: "warning", Regex: `(?i)\bwarning\b`},
		{Category: CategoryRisk, Name: "alert", Regex: `(?i)\balert\b`},
		{Category: CategoryRisk, Name: "caution", Regex: `(?i)\bcaution\b`},
		{Category: CategoryRisk, Name: "must_not", Regex: `(?i)\bmust not\b`},
		{Category: CategoryRisk, Name: "prohibited", Regex: `(?i)\bprohibited\b`},

		// Contradiction markers. "whereas" only counts when it co-occurs
		// with a negation in the same unit.
		{Category: CategoryContradiction, Name: "vs", Regex: `(?i)\bvs\.?\b|\bversus\b`},
		{Category: CategoryContradiction, Name: "contradiction", Regex: `(?i)\bcontradict(?:s|ion)?\b`},
		{Category: CategoryContradiction, Name: "conflicts_with", Regex: `(?i)\bconflicts? with\b`},
		{Category: CategoryContradiction, Name: "whereas_negated", Regex: `(?is)\bwhereas\b.*\b(?:not|no|never|cannot)\b|\b(?:not|no|never|cannot)\b.*\bwhereas\b`},

		// Numeric and date markers
		{Category: CategoryNumeric, Name: "number", Regex: `\b\d+(?:\.\d+)?\b`},
		{Category: CategoryNumeric, Name: "currency", Regex: `[$€£]\s?\d`},
		{Category: CategoryNumeric, Name: "percentage", Regex: `\b\d+(?:\.\d+)?\s?%`},
		{Category: CategoryNumeric, Name: "date_named", Regex: `(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}(?:,?\s*\d{4})?\b`},
		{Category: CategoryNumeric, Name: "date_numeric", Regex: `\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`},
	}
}

// compiledPattern holds a pre-compiled table entry.
type compiledPattern struct {
	Pattern
	regex *regexp.Regexp
}

// Detector matches text against the pattern table.
type Detector struct {
	patterns []*compiledPattern
}

// NewDetector compiles the given pattern table. An empty table falls back to
// DefaultPatterns. Invalid regexes are skipped.
func NewDetector(patterns []Pattern) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}

	compiled := make([]*compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		compiled = append(compiled, &compiledPattern{Pattern: p, regex: re})
	}

	return &Detector{patterns: compiled}
}

// Detect returns the critical flags for a unit of text. A flag is true if at
// least one pattern of its category matches anywhere in the text.
func (d *Detector) Detect(text string) Flags {
	var flags Flags
	for _, p := range d.patterns {
		switch p.Category {
		case CategoryException:
			if flags.HasException {
				continue
			}
		case CategoryRisk:
			if flags.HasRisk {
				continue
			}
		case CategoryContradiction:
			if flags.HasContradiction {
				continue
			}
		case CategoryNumeric:
			if flags.HasNumbers {
				continue
			}
		}

		if !p.regex.MatchString(text) {
			continue
		}

		switch p.Category {
		case CategoryException:
			flags.HasException = true
		case CategoryRisk:
			flags.HasRisk = true
		case CategoryContradiction:
			flags.HasContradiction = true
		case CategoryNumeric:
			flags.HasNumbers = true
		}
	}
	return flags
}
