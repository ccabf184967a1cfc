package text

import (
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/starford/cardweb/internal/memo"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
)

// DefaultFingerprintSize is the number of terms a fingerprint keeps.
const DefaultFingerprintSize = 50

// Options tunes a Corpus.
type Options struct {
	MaxNGram        int
	FingerprintSize int
	MemoSize        int
	// Synonyms maps a phrase to phrases that should also be counted
	// (at a discount) wherever it occurs. Phrases are normalized on use.
	Synonyms map[string][]string
}

func (o Options) withDefaults() Options {
	if o.MaxNGram <= 0 {
		o.MaxNGram = DefaultMaxNGram
	}
	if o.FingerprintSize <= 0 {
		o.FingerprintSize = DefaultFingerprintSize
	}
	return o
}

// cardBags separates n-grams found in the card's own text from those
// added by synonym expansion.
type cardBags struct {
	own     Bag
	synonym Bag
}

func (cb cardBags) merged() Bag {
	out := make(Bag, len(cb.own)+len(cb.synonym))
	for k, w := range cb.own {
		out[k] += w
	}
	for k, w := range cb.synonym {
		out[k] += w
	}
	return out
}

// Corpus holds the text-derived state of one card snapshot. Everything is
// computed lazily on first use and kept until the Corpus is dropped.
type Corpus struct {
	graph   *references.Graph
	stemmer *Stemmer
	opts    Options

	buildOnce sync.Once
	texts     map[string]*CardText
	bags      map[string]cardBags
	idf       map[string]float64
	maxIDF    float64
	synonyms  map[string][]string

	fpOnce       sync.Once
	fingerprints map[string]Fingerprint
	combined     *memo.Cache[string, Fingerprint]

	conceptOnce sync.Once
	concepts    ConceptMap
	maxConcept  int
}

// NewCorpus creates a corpus over the cards of g.
func NewCorpus(g *references.Graph, stemmer *Stemmer, opts Options) *Corpus {
	if stemmer == nil {
		stemmer = NewStemmer()
	}
	opts = opts.withDefaults()
	return &Corpus{
		graph:    g,
		stemmer:  stemmer,
		opts:     opts,
		combined: memo.New[string, Fingerprint](opts.MemoSize),
	}
}

// Stemmer returns the stemmer used by the corpus.
func (c *Corpus) Stemmer() *Stemmer {
	return c.stemmer
}

// Key normalizes phrase into n-gram key form.
func (c *Corpus) Key(phrase string) string {
	return c.stemmer.Key(phrase)
}

func (c *Corpus) build() {
	c.buildOnce.Do(func() {
		c.synonyms = make(map[string][]string, len(c.opts.Synonyms))
		for phrase, syns := range c.opts.Synonyms {
			key := c.Key(phrase)
			for _, s := range syns {
				if sk := c.Key(s); sk != "" && sk != key {
					c.synonyms[key] = append(c.synonyms[key], sk)
				}
			}
		}

		cards := c.graph.Cards()
		c.texts = make(map[string]*CardText, len(cards))
		c.bags = make(map[string]cardBags, len(cards))
		docFreq := make(map[string]int)
		for id, card := range cards {
			ct := c.stemmer.NewCardText(card)
			c.texts[id] = ct
			bags := c.cardBags(card, ct)
			c.bags[id] = bags
			for term := range bags.merged() {
				docFreq[term]++
			}
		}

		total := float64(len(cards))
		c.idf = make(map[string]float64, len(docFreq))
		c.maxIDF = math.Inf(-1)
		for term, df := range docFreq {
			v := math.Log10(total / float64(df+1))
			c.idf[term] = v
			if v > c.maxIDF {
				c.maxIDF = v
			}
		}
		if len(c.idf) == 0 {
			c.maxIDF = 0
		}
	})
}

// importantNGrams returns the normalized strings of the concepts card
// explicitly references.
func (c *Corpus) importantNGrams(card *models.Card) map[string]bool {
	out := make(map[string]bool)
	for target, types := range card.References.Targets {
		concept := false
		for typ := range types {
			if references.IsConceptClass(typ) {
				concept = true
				break
			}
		}
		if !concept {
			continue
		}
		targetCard, ok := c.graph.Card(target)
		if !ok {
			continue
		}
		for _, s := range c.conceptStrings(targetCard) {
			out[s] = true
		}
	}
	return out
}

func (c *Corpus) cardBags(card *models.Card, ct *CardText) cardBags {
	important := c.importantNGrams(card)
	own := make(Bag)
	for _, f := range ct.Fields {
		if f.Config.IndexingCount == 0 {
			continue
		}
		for _, r := range f.Runs {
			own.add(r.Words(), c.opts.MaxNGram, f.Config.IndexingCount, important)
		}
	}
	for key := range important {
		own[key] += importantNGramBoost
	}

	synonym := make(Bag)
	for key, w := range own {
		for _, syn := range c.synonyms[key] {
			synonym[syn] += w * synonymDiscount
		}
	}
	return cardBags{own: own, synonym: synonym}
}

// Text returns the processed fields of a card.
func (c *Corpus) Text(cardID string) (*CardText, bool) {
	c.build()
	ct, ok := c.texts[cardID]
	return ct, ok
}

// NGrams returns the merged weighted n-gram bag for a card.
func (c *Corpus) NGrams(cardID string) Bag {
	c.build()
	return c.bags[cardID].merged()
}

// IDF returns the inverse document frequency of a term, falling back to
// the corpus maximum for unseen terms.
func (c *Corpus) IDF(term string) float64 {
	c.build()
	if v, ok := c.idf[term]; ok {
		return v
	}
	return c.maxIDF
}

// MaxIDF returns the largest IDF in the corpus.
func (c *Corpus) MaxIDF() float64 {
	c.build()
	return c.maxIDF
}

// Fingerprint returns the TF-IDF fingerprint of one card.
func (c *Corpus) Fingerprint(cardID string) Fingerprint {
	return c.Fingerprints()[cardID]
}

// Fingerprints returns the fingerprint of every card.
func (c *Corpus) Fingerprints() map[string]Fingerprint {
	c.build()
	c.fpOnce.Do(func() {
		c.fingerprints = make(map[string]Fingerprint, len(c.bags))
		for id, bags := range c.bags {
			c.fingerprints[id] = c.fingerprintFromBag(bags.merged(), []string{id})
		}
	})
	return c.fingerprints
}

// FingerprintForCards returns one fingerprint over the combined text of cardIDs.
func (c *Corpus) FingerprintForCards(cardIDs []string) Fingerprint {
	ids := slices.Clone(cardIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return c.combined.Do(strings.Join(ids, "+"), func() Fingerprint {
		c.build()
		bag := make(Bag)
		for _, id := range ids {
			for k, w := range c.bags[id].merged() {
				bag[k] += w
			}
		}
		return c.fingerprintFromBag(bag, ids)
	})
}

func (c *Corpus) fingerprintFromBag(bag Bag, ids []string) Fingerprint {
	total := bag.Total()
	type scored struct {
		term  string
		value float64
	}
	all := make([]scored, 0, len(bag))
	if total > 0 {
		for term, w := range bag {
			all = append(all, scored{term: term, value: w / total * c.IDF(term)})
		}
	}
	slices.SortFunc(all, func(a, b scored) int {
		switch {
		case a.value > b.value:
			return -1
		case a.value < b.value:
			return 1
		}
		return strings.Compare(a.term, b.term)
	})
	if len(all) > c.opts.FingerprintSize {
		all = all[:c.opts.FingerprintSize]
	}
	fp := Fingerprint{
		items:   make(map[string]float64, len(all)),
		order:   make([]string, 0, len(all)),
		cardIDs: ids,
	}
	for _, s := range all {
		fp.items[s.term] = s.value
		fp.order = append(fp.order, s.term)
	}
	return fp
}
