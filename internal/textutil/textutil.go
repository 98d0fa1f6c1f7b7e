// Package textutil holds the sentence and word helpers shared by the
// chunker, summarizer, and quality scorer.
package textutil

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// SplitSentences splits text on terminal punctuation followed by whitespace.
// Trailing text without terminal punctuation is returned as a final sentence.
// Fragments without a single word character are dropped, so punctuation-only
// text yields no sentences.
func SplitSentences(text string) []string {
	var sentences []string
	consumed := 0

	for _, m := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		s := strings.TrimSpace(text[m[2]:m[3]])
		if wordRe.MatchString(s) {
			sentences = append(sentences, s)
		}
		consumed = m[1]
	}

	if rest := strings.TrimSpace(text[consumed:]); wordRe.MatchString(rest) {
		sentences = append(sentences, rest)
	}

	return sentences
}

// CountWords returns the number of whitespace-separated tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// TailWords returns the last n words of text joined by single spaces, or the
// empty string if text has n or fewer words.
func TailWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

// TruncateWords returns at most n leading words of text joined by single
// spaces.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

// Normalize lowercases text and collapses runs of whitespace to single
// spaces. Used for near-verbatim containment checks.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Words returns the lowercased alphanumeric tokens of text.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}
