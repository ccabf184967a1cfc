// Package text implements the text-similarity engine: normalization and
// stemming of card fields, n-gram extraction, TF-IDF fingerprints, query
// scoring and concept suggestion.
package text

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var (
	dashRe  = regexp.MustCompile(`\s*(?:—|–|--)\s*`)
	runSepR = regexp.MustCompile(`[.!?;:]+(?:\s+|$)|\n+`)
)

var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true, "an": true,
	"and": true, "any": true, "are": true, "as": true, "at": true, "be": true,
	"because": true, "been": true, "but": true, "by": true, "can": true, "could": true,
	"did": true, "do": true, "does": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "how": true,
	"i": true, "if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "just": true, "more": true, "not": true, "of": true, "on": true,
	"or": true, "our": true, "she": true, "so": true, "than": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "which": true, "who": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// stemOverrides corrects words the Porter2 stemmer conflates badly.
var stemOverrides = map[string]string{
	"university":   "university",
	"universities": "university",
	"news":         "news",
	"physics":      "physics",
	"ethics":       "ethics",
	"organization": "organization",
	"organ":        "organ",
	"general":      "general",
	"generous":     "generous",
}

// IsStopWord reports whether the normalized word is ignored for matching.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Stemmer stems words with a per-instance cache.
type Stemmer struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewStemmer creates an empty stemmer.
func NewStemmer() *Stemmer {
	return &Stemmer{cache: make(map[string]string)}
}

// Stem returns the stem of a normalized word.
func (s *Stemmer) Stem(word string) string {
	s.mu.RLock()
	st, ok := s.cache[word]
	s.mu.RUnlock()
	if ok {
		return st
	}
	if override, ok := stemOverrides[word]; ok {
		st = override
	} else if strings.Contains(word, "://") {
		st = word
	} else {
		st = english.Stem(word, true)
	}
	s.mu.Lock()
	s.cache[word] = st
	s.mu.Unlock()
	return st
}

// Run is one sentence-like stretch of a field in its four representations.
// Downstream comparisons use WithoutStopWords unless noted.
type Run struct {
	Original         string
	Normalized       string
	Stemmed          string
	WithoutStopWords string
}

// Words returns the stemmed, stop-word-free tokens.
func (r Run) Words() []string {
	return strings.Fields(r.WithoutStopWords)
}

// NewRun normalizes and stems one piece of text.
func (s *Stemmer) NewRun(original string) Run {
	words := splitWords(original)
	stems := make([]string, 0, len(words))
	kept := make([]string, 0, len(words))
	for _, w := range words {
		st := s.Stem(w)
		stems = append(stems, st)
		if !IsStopWord(w) {
			kept = append(kept, st)
		}
	}
	return Run{
		Original:         original,
		Normalized:       strings.Join(words, " "),
		Stemmed:          strings.Join(stems, " "),
		WithoutStopWords: strings.Join(kept, " "),
	}
}

// Key normalizes a phrase into the form n-gram maps are keyed by.
func (s *Stemmer) Key(phrase string) string {
	return s.NewRun(phrase).WithoutStopWords
}

// splitWords lowercases text and splits it into punctuation-trimmed tokens.
// URLs stay whole; other slashes separate words.
func splitWords(text string) []string {
	text = dashRe.ReplaceAllString(strings.ToLower(text), " ")
	var out []string
	for _, raw := range strings.Fields(text) {
		if strings.Contains(raw, "://") || strings.HasPrefix(raw, "www.") {
			if t := trimPunct(raw); t != "" {
				out = append(out, t)
			}
			continue
		}
		for _, part := range strings.Split(raw, "/") {
			if t := trimPunct(part); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// splitRuns breaks text at line breaks and sentence punctuation.
func splitRuns(text string) []string {
	var out []string
	for _, part := range runSepR.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}
