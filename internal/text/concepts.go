package text

import (
	"slices"
	"strings"

	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
)

// ConceptMap maps a normalized concept string to the concept card id.
type ConceptMap map[string]string

// ConceptSuggestion is a concept card whose name appears in a card's text
// without being referenced.
type ConceptSuggestion struct {
	ConceptID string `json:"concept_id"`
	NGram     string `json:"ngram"`
}

func (c *Corpus) conceptStrings(card *models.Card) []string {
	var out []string
	for _, s := range append([]string{card.Title}, card.Synonyms...) {
		if k := c.Key(s); k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// ConceptMap returns every concept string in the corpus. When two
// concepts share a string the lower id wins.
func (c *Corpus) ConceptMap() ConceptMap {
	c.conceptOnce.Do(func() {
		c.concepts = make(ConceptMap)
		for id, card := range c.graph.Cards() {
			if card.Type != models.CardTypeConcept {
				continue
			}
			for _, s := range c.conceptStrings(card) {
				if prev, ok := c.concepts[s]; ok && prev < id {
					continue
				}
				c.concepts[s] = id
				if n := len(strings.Fields(s)); n > c.maxConcept {
					c.maxConcept = n
				}
			}
		}
	})
	return c.concepts
}

// ConceptFor returns the concept card named by phrase.
func (c *Corpus) ConceptFor(phrase string) (string, bool) {
	id, ok := c.ConceptMap()[c.Key(phrase)]
	return id, ok
}

// SuggestConcepts finds concepts mentioned in a card's text that the card
// does not already reference with a concept-class reference.
func (c *Corpus) SuggestConcepts(cardID string) []ConceptSuggestion {
	concepts := c.ConceptMap()
	card, ok := c.graph.Card(cardID)
	if !ok || len(concepts) == 0 {
		return nil
	}
	ct, _ := c.Text(cardID)

	referenced := make(map[string]bool)
	for target, types := range card.References.Targets {
		for typ := range types {
			if references.IsConceptClass(typ) {
				referenced[target] = true
			}
		}
	}

	best := make(map[string]string)
	var matches []string
	for _, f := range ct.Fields {
		if f.Config.IndexingCount == 0 {
			continue
		}
		for _, r := range f.Runs {
			for _, gram := range nGramKeys(r.Words(), c.maxConcept) {
				id, ok := concepts[gram]
				if !ok || id == cardID || referenced[id] {
					continue
				}
				if len(gram) > len(best[id]) {
					best[id] = gram
				}
				if !slices.Contains(matches, gram) {
					matches = append(matches, gram)
				}
			}
		}
	}

	out := make([]ConceptSuggestion, 0, len(best))
	for id, gram := range best {
		if coveredByLonger(gram, matches) {
			continue
		}
		out = append(out, ConceptSuggestion{ConceptID: id, NGram: gram})
	}
	slices.SortFunc(out, func(a, b ConceptSuggestion) int {
		return strings.Compare(a.ConceptID, b.ConceptID)
	})
	return out
}

// coveredByLonger reports whether gram is a token-aligned part of a longer match.
func coveredByLonger(gram string, matches []string) bool {
	needle := " " + gram + " "
	for _, m := range matches {
		if len(m) > len(gram) && strings.Contains(" "+m+" ", needle) {
			return true
		}
	}
	return false
}
