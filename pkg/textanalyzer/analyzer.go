// Package textanalyzer turns free text into normalized terms: lower-cased
// letter runs, English stop words removed, Porter2 stems.
package textanalyzer

import (
	"regexp"
	"strings"
)

// Analyzer turns a text into a sequence of terms.
type Analyzer interface {
	Analyze(text string) []string
}

// \p{L}+ matches letter runs in any script.
var tokenizerRegex = regexp.MustCompile(`\p{L}+`)

// Tokenize splits text into lower-case words.
func Tokenize(text string) []string {
	return tokenizerRegex.FindAllString(strings.ToLower(text), -1)
}

// WordCount reports how many whitespace separated words s has.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {},
}

// FilterEnglishStopWords drops common English words. The input is reused.
func FilterEnglishStopWords(tokens []string) []string {
	filtered := tokens[:0]
	for _, token := range tokens {
		if _, stop := englishStopWords[token]; !stop {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// EnglishAnalyzer tokenizes, removes stop words and stems.
type EnglishAnalyzer struct{}

// NewEnglishAnalyzer returns the analyzer used for node attribute text.
func NewEnglishAnalyzer() *EnglishAnalyzer {
	return &EnglishAnalyzer{}
}

// Analyze implements Analyzer.
func (EnglishAnalyzer) Analyze(text string) []string {
	tokens := FilterEnglishStopWords(Tokenize(text))
	for i, tok := range tokens {
		tokens[i] = StemEnglish(tok)
	}
	return tokens
}
