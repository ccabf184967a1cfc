// Package snapshot holds immutable card snapshots and the store that swaps them.
package snapshot

import (
	"sync"

	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
)

// Well-known base sets.
const (
	SetMain        = "main"
	SetEverything  = "everything"
	SetReadingList = "reading-list"
)

// Snapshot is one immutable view of every card plus the named sets and
// membership filters computed for it. Generation increases with every
// snapshot a Store hands out.
type Snapshot struct {
	Generation uint64
	Cards      map[string]*models.Card
	// Sets are ordered base sets of card ids.
	Sets map[string][]string
	// Filters are concrete membership filters (starred, read, tag-x, ...).
	Filters map[string]map[string]bool
	// EditingCard is the card currently being edited, if any.
	EditingCard *models.Card
	// CardSimilarity optionally carries precomputed similarity scores.
	CardSimilarity map[string]map[string]float64

	graphOnce sync.Once
	graph     *references.Graph
	slugOnce  sync.Once
	slugs     map[string]string
}

// Graph returns the reference graph of the snapshot, built on first use.
func (s *Snapshot) Graph() *references.Graph {
	s.graphOnce.Do(func() {
		s.graph = references.NewGraph(s.Cards)
	})
	return s.graph
}

// Resolve maps a card id or slug to a card id.
func (s *Snapshot) Resolve(idOrSlug string) (string, bool) {
	if _, ok := s.Cards[idOrSlug]; ok {
		return idOrSlug, true
	}
	s.slugOnce.Do(func() {
		s.slugs = make(map[string]string)
		for id, c := range s.Cards {
			for _, slug := range c.Slugs {
				if prev, ok := s.slugs[slug]; !ok || id < prev {
					s.slugs[slug] = id
				}
			}
		}
	})
	id, ok := s.slugs[idOrSlug]
	return id, ok
}

// Set returns the ids of a base set.
func (s *Snapshot) Set(name string) ([]string, bool) {
	ids, ok := s.Sets[name]
	return ids, ok
}

// withSimilarity copies the content of s into a new snapshot with sim.
// Cards, sets and filters are shared; none of them is mutated after Build.
func (s *Snapshot) withSimilarity(sim map[string]map[string]float64) *Snapshot {
	return &Snapshot{
		Cards:          s.Cards,
		Sets:           s.Sets,
		Filters:        s.Filters,
		EditingCard:    s.EditingCard,
		CardSimilarity: sim,
	}
}

// flags recovers the user flags of a card from the membership filters.
func (s *Snapshot) flags(id string) Flags {
	return Flags{
		Starred:     s.Filters[FilterStarred][id],
		Read:        s.Filters[FilterRead][id],
		ReadingList: s.Filters[FilterInReadingList][id],
	}
}
