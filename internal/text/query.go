package text

import (
	"math"
	"strings"
)

const (
	allWordsWeight = 0.5
	bigramWeight   = 0.75
	wordWeightDiv  = 8
	inboundBoost   = 0.02
)

type clause struct {
	words     []string
	phrase    string
	anyOrder  bool
	weight    float64
	fullMatch bool
}

// PreparedQuery is a normalized search query ready to score cards.
type PreparedQuery struct {
	Text    string
	clauses []clause
}

// PrepareQuery normalizes q and derives its match clauses.
func (c *Corpus) PrepareQuery(q string) PreparedQuery {
	pq := PreparedQuery{Text: q}
	run := c.stemmer.NewRun(q)
	if run.Stemmed == "" {
		return pq
	}
	pq.clauses = append(pq.clauses, clause{phrase: run.Stemmed, weight: 1, fullMatch: true})

	words := run.Words()
	if len(words) > 1 {
		pq.clauses = append(pq.clauses, clause{words: words, anyOrder: true, weight: allWordsWeight, fullMatch: true})
		for i := 0; i+1 < len(words); i++ {
			pq.clauses = append(pq.clauses, clause{phrase: words[i] + " " + words[i+1], weight: bigramWeight})
		}
	}
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		weight := math.Log10(float64(len(w))) / wordWeightDiv
		if weight <= 0 {
			continue
		}
		pq.clauses = append(pq.clauses, clause{phrase: w, weight: weight})
	}
	return pq
}

// Empty reports whether the query has nothing to match.
func (pq PreparedQuery) Empty() bool {
	return len(pq.clauses) == 0
}

// Score returns the weighted match score of a card and whether any
// full-match clause hit. Cards with more substantive inbound links score higher.
func (c *Corpus) Score(pq PreparedQuery, cardID string) (float64, bool) {
	ct, ok := c.Text(cardID)
	if !ok || pq.Empty() {
		return 0, false
	}
	var score float64
	full := false
	for _, f := range ct.Fields {
		if f.Config.QueryWeight == 0 || len(f.Runs) == 0 {
			continue
		}
		for _, cl := range pq.clauses {
			if cl.matches(f) {
				score += cl.weight * f.Config.QueryWeight
				if cl.fullMatch {
					full = true
				}
			}
		}
	}
	if score == 0 {
		return 0, false
	}
	score *= 1 + inboundBoost*float64(len(c.graph.SubstantiveInbound(cardID)))
	return score, full
}

func (cl clause) matches(f Field) bool {
	if cl.anyOrder {
		for _, w := range cl.words {
			if !fieldContains(f, w) {
				return false
			}
		}
		return true
	}
	return fieldContains(f, cl.phrase)
}

func fieldContains(f Field, phrase string) bool {
	needle := " " + phrase + " "
	for _, r := range f.Runs {
		if strings.Contains(" "+r.Stemmed+" ", needle) {
			return true
		}
	}
	return false
}
