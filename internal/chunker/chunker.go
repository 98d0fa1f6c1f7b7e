// Package chunker splits page-tagged paragraphs into semantically bounded
// chunks, assigns section identifiers from detected headings, and tags each
// chunk with critical-content flags.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/compressd/internal/critical"
	"github.com/fyrsmithlabs/compressd/internal/document"
	"github.com/fyrsmithlabs/compressd/internal/textutil"
)

// Validation errors, surfaced before any processing begins.
var (
	ErrMinExceedsMax   = errors.New("min_words exceeds max_words")
	ErrOverlapTooLarge = errors.New("overlap_words must not exceed min_words")
	ErrNonPositive     = errors.New("min_words and max_words must be positive")
)

// SectionUncategorized is assigned to body text appearing before any heading.
const SectionUncategorized = "uncategorized"

// Config holds the chunking bounds.
type Config struct {
	MinWords     int `koanf:"min_words" json:"min_words"`
	MaxWords     int `koanf:"max_words" json:"max_words"`
	OverlapWords int `koanf:"overlap_words" json:"overlap_words"`
}

// DefaultConfig returns the default chunking bounds.
func DefaultConfig() Config {
	return Config{
		MinWords:     30,
		MaxWords:     250,
		OverlapWords: 30,
	}
}

// Validate checks the bounds. Each violated constraint maps to a named error.
func (c Config) Validate() error {
	if c.MinWords <= 0 || c.MaxWords <= 0 {
		return ErrNonPositive
	}
	if c.MinWords > c.MaxWords {
		return fmt.Errorf("%w: min_words=%d max_words=%d", ErrMinExceedsMax, c.MinWords, c.MaxWords)
	}
	if c.OverlapWords > c.MinWords {
		return fmt.Errorf("%w: overlap_words=%d min_words=%d", ErrOverlapTooLarge, c.OverlapWords, c.MinWords)
	}
	return nil
}

// Heading patterns. Numbered headings carry their own section identifier;
// the rest open a synthesized one.
var (
	numberedHeading = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+\S`)
	keywordHeading  = regexp.MustCompile(`(?i)^(?:SECTION|APPENDIX|CHAPTER)\s+(\d+(?:\.\d+)*)`)
	markdownHeading = regexp.MustCompile(`^#{1,3}\s+\S`)
)

// Chunker splits paragraphs into chunks.
type Chunker struct {
	cfg      Config
	detector *critical.Detector
	logger   *zap.Logger
}

// New creates a chunker. The configuration is validated up front; detector
// and logger may be nil, in which case defaults are used.
func New(cfg Config, detector *critical.Detector, logger *zap.Logger) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if detector == nil {
		detector = critical.NewDetector(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{cfg: cfg, detector: detector, logger: logger}, nil
}

// buffer accumulates paragraphs for the chunk under construction.
type buffer struct {
	parts        []string
	words        int
	page         int
	overlapWords int
}

func (b *buffer) empty() bool { return b.words == 0 }

func (b *buffer) text() string { return strings.Join(b.parts, "\n") }

// Chunk converts ordered paragraphs into ordered chunks. Headings open a new
// section and are not emitted as standalone chunks. Chunks stay within
// [MinWords, MaxWords] except the final chunk of a section, which may be
// shorter, and a chunk flushed because the next whole paragraph would breach
// MaxWords: paragraph boundaries always win over the MinWords floor.
// Consecutive chunks of one section overlap by OverlapWords words.
func (c *Chunker) Chunk(paragraphs []document.Paragraph) ([]document.Chunk, error) {
	var (
		chunks     []document.Chunk
		buf        buffer
		section    = SectionUncategorized
		synthCount int
		nextID     int
	)

	flush := func() {
		if buf.empty() {
			return
		}
		chunks = append(chunks, c.newChunk(nextID, buf, section))
		nextID++
		buf = buffer{}
	}

	// startNext opens a new buffer within the current section, carrying the
	// trailing overlap of the chunk just emitted when it fits alongside the
	// incoming piece without breaching MaxWords.
	startNext := func(page, incomingWords int) {
		buf = buffer{page: page}
		if len(chunks) == 0 || c.cfg.OverlapWords == 0 {
			return
		}
		prev := chunks[len(chunks)-1]
		if prev.SectionID != section {
			return
		}
		if c.cfg.OverlapWords+incomingWords > c.cfg.MaxWords {
			return
		}
		if tail := textutil.TailWords(prev.Text, c.cfg.OverlapWords); tail != "" {
			buf.parts = append(buf.parts, tail)
			buf.overlapWords = textutil.CountWords(tail)
			buf.words = buf.overlapWords
		}
	}

	for _, para := range paragraphs {
		text := strings.TrimSpace(para.Text)
		if text == "" {
			continue
		}

		if id, ok := c.classifyHeading(text); ok {
			// A heading closes the previous section's final chunk,
			// which is exempt from the MinWords bound.
			flush()
			if id == "" {
				synthCount++
				id = fmt.Sprintf("sec-%d", synthCount)
			}
			section = id
			c.logger.Debug("section opened",
				zap.String("section_id", section),
				zap.Int("page", para.Page))
			continue
		}

		for _, piece := range c.splitOversized(text) {
			words := textutil.CountWords(piece)
			if !buf.empty() && buf.words+words > c.cfg.MaxWords {
				flush()
				startNext(para.Page, words)
			}
			if buf.empty() {
				buf.page = para.Page
			}
			buf.parts = append(buf.parts, piece)
			buf.words += words
		}
	}
	flush()

	c.logger.Info("chunking complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("sections", countSections(chunks)))

	return chunks, nil
}

// classifyHeading reports whether the paragraph is a heading and, for
// numbered headings, its section identifier.
func (c *Chunker) classifyHeading(text string) (string, bool) {
	if m := keywordHeading.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := numberedHeading.FindStringSubmatch(text); m != nil {
		// Numbered body text ("30 days notice...") is not a heading;
		// require heading length and no terminal punctuation.
		if textutil.CountWords(text) <= 15 && !strings.ContainsAny(text[len(text)-1:], ".!?,;:") {
			return m[1], true
		}
		return "", false
	}
	if markdownHeading.MatchString(text) && len(text) < 150 {
		return "", true
	}
	if isAllCapsHeading(text) {
		return "", true
	}
	return "", false
}

func isAllCapsHeading(text string) bool {
	if len(text) < 4 || len(text) >= 150 || textutil.CountWords(text) >= 12 {
		return false
	}
	if strings.ContainsAny(text[len(text)-1:], ".!?") {
		return false
	}
	hasLetter := false
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// splitOversized breaks a single paragraph exceeding MaxWords at sentence
// boundaries. Paragraph boundaries are always preferred; sentence splitting
// happens only here.
func (c *Chunker) splitOversized(text string) []string {
	if textutil.CountWords(text) <= c.cfg.MaxWords {
		return []string{text}
	}

	var (
		pieces  []string
		current []string
		words   int
	)
	for _, sentence := range textutil.SplitSentences(text) {
		n := textutil.CountWords(sentence)
		if words > 0 && words+n > c.cfg.MaxWords {
			pieces = append(pieces, strings.Join(current, " "))
			current, words = nil, 0
		}
		current = append(current, sentence)
		words += n
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces
}

func (c *Chunker) newChunk(id int, buf buffer, section string) document.Chunk {
	text := buf.text()
	return document.Chunk{
		ID:           id,
		Text:         text,
		SectionID:    section,
		Page:         buf.page,
		WordCount:    buf.words,
		OverlapWords: buf.overlapWords,
		Flags:        c.detector.Detect(text),
	}
}

func countSections(chunks []document.Chunk) int {
	seen := make(map[string]struct{}, len(chunks))
	for _, ch := range chunks {
		seen[ch.SectionID] = struct{}{}
	}
	return len(seen)
}
