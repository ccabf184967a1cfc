package snapshot

import (
	"sync"

	"github.com/starford/cardweb/internal/models"
)

// Store holds the stable snapshot and an optional live one that carries
// uncommitted edits. Snapshots are never mutated once published; every
// change produces a new snapshot with a higher generation.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	stable     *Snapshot
	live       *Snapshot
	listeners  []func(*Snapshot)
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.stable = s.stamp(NewBuilder().Build())
	return s
}

// OnReplace registers fn to be called with every new stable snapshot.
func (s *Store) OnReplace(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// stamp assigns the next generation. Callers hold mu or own snap exclusively.
func (s *Store) stamp(snap *Snapshot) *Snapshot {
	s.generation++
	snap.Generation = s.generation
	return snap
}

// Replace publishes snap as the new stable snapshot and drops any live edits.
func (s *Store) Replace(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	s.stamp(snap)
	s.stable, s.live = snap, nil
	listeners := append([]func(*Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// Stable returns the last committed snapshot.
func (s *Store) Stable() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stable
}

// Live returns the snapshot including pending edits, or the stable one.
func (s *Store) Live() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live != nil {
		return s.live
	}
	return s.stable
}

// Edit derives a live snapshot in which card replaces its stored version.
// Sets and membership filters are rebuilt so the edit can move the card in
// or out of them; user flags carry over from the base snapshot.
// Edits accumulate until Replace or Discard.
func (s *Store) Edit(card *models.Card) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.stable
	if s.live != nil {
		base = s.live
	}
	b := NewBuilder()
	for id, c := range base.Cards {
		if id != card.ID {
			b.Add(c, base.flags(id))
		}
	}
	b.Add(card, base.flags(card.ID))
	live := b.Build()
	live.EditingCard = card
	live.CardSimilarity = base.CardSimilarity
	s.live = s.stamp(live)
	return s.live
}

// SetSimilarity republishes the stable snapshot, and the live one if
// present, carrying sim as their similarity scores. Pending edits survive.
func (s *Store) SetSimilarity(sim map[string]map[string]float64) *Snapshot {
	s.mu.Lock()
	stable := s.stamp(s.stable.withSimilarity(sim))
	s.stable = stable
	if s.live != nil {
		s.live = s.stamp(s.live.withSimilarity(sim))
	}
	listeners := append([]func(*Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(stable)
	}
	return stable
}

// Discard drops pending edits.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
}

// Generation returns the newest generation handed out.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
