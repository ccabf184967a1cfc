package text

import (
	"slices"
	"strings"
)

// Fingerprint is a bounded bag of TF-IDF weighted n-grams describing one
// card or a group of cards.
type Fingerprint struct {
	items   map[string]float64
	order   []string
	cardIDs []string
}

// NewFingerprint builds a fingerprint from explicit weights. Used for
// precomputed data and tests.
func NewFingerprint(items map[string]float64, cardIDs ...string) Fingerprint {
	fp := Fingerprint{items: make(map[string]float64, len(items)), cardIDs: cardIDs}
	for k, v := range items {
		fp.items[k] = v
		fp.order = append(fp.order, k)
	}
	slices.SortFunc(fp.order, func(a, b string) int {
		switch {
		case fp.items[a] > fp.items[b]:
			return -1
		case fp.items[a] < fp.items[b]:
			return 1
		}
		return strings.Compare(a, b)
	})
	return fp
}

// CardIDs returns the cards the fingerprint describes.
func (f Fingerprint) CardIDs() []string {
	return f.cardIDs
}

// Terms returns the terms from heaviest to lightest.
func (f Fingerprint) Terms() []string {
	return f.order
}

// Weight returns the TF-IDF weight of term, or 0.
func (f Fingerprint) Weight(term string) float64 {
	return f.items[term]
}

// Len returns the number of terms.
func (f Fingerprint) Len() int {
	return len(f.items)
}

// SemanticOverlap scores how much two fingerprints share: each shared
// term contributes 1 plus both weights.
func SemanticOverlap(a, b Fingerprint) float64 {
	small, large := a, b
	if len(small.items) > len(large.items) {
		small, large = large, small
	}
	// Sum in sorted term order so the result does not depend on argument order.
	shared := make([]string, 0, len(small.items))
	for term := range small.items {
		if _, ok := large.items[term]; ok {
			shared = append(shared, term)
		}
	}
	slices.Sort(shared)
	var score float64
	for _, term := range shared {
		score += 1.0 + a.items[term] + b.items[term]
	}
	return score
}

// ScoredCard pairs a card with a similarity score.
type ScoredCard struct {
	CardID string  `json:"card_id"`
	Score  float64 `json:"score"`
}

// ClosestOverlappingItems ranks every fingerprint not describing the
// key's own cards by overlap with key, highest first. Ties are ordered by card id.
func ClosestOverlappingItems(key Fingerprint, fingerprints map[string]Fingerprint) []ScoredCard {
	own := make(map[string]bool, len(key.cardIDs))
	for _, id := range key.cardIDs {
		own[id] = true
	}
	out := make([]ScoredCard, 0, len(fingerprints))
	for id, fp := range fingerprints {
		if own[id] {
			continue
		}
		out = append(out, ScoredCard{CardID: id, Score: SemanticOverlap(key, fp)})
	}
	slices.SortFunc(out, func(a, b ScoredCard) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.CardID, b.CardID)
	})
	return out
}
