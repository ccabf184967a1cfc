package cardservice

import (
	"context"
	"log/slog"
	"maps"

	"github.com/starford/cardweb/internal/filter"
	"github.com/starford/cardweb/internal/text"
)

// preciseFingerprintFactor widens fingerprints for background similarity.
const preciseFingerprintFactor = 4

// similarityQueueSize bounds pending background requests; extra requests
// are dropped and asked for again by the next evaluation.
const similarityQueueSize = 64

// similarityState holds background similarity scores for the current
// card content. epoch changes whenever content is rebuilt.
type similarityState struct {
	epoch    uint64
	computed map[string]map[string]float64
	pending  map[string]bool
}

// similarityQueue is the filter.SimilarityFetcher handed to engines.
type similarityQueue struct {
	svc *Service
}

// Request enqueues cardID without blocking.
func (q similarityQueue) Request(cardID string) {
	s := q.svc
	s.simMu.Lock()
	defer s.simMu.Unlock()
	if s.sim.pending[cardID] {
		return
	}
	select {
	case s.simQueue <- cardID:
		s.sim.pending[cardID] = true
	default:
	}
}

// fetcher returns the engine fetcher, or nil when background similarity is off.
func (s *Service) fetcher() filter.SimilarityFetcher {
	if s.simQueue == nil {
		return nil
	}
	return similarityQueue{svc: s}
}

// resetSimilarityLocked drops background scores after a content change.
// Callers hold simMu.
func (s *Service) resetSimilarityLocked() {
	s.sim.epoch++
	s.sim.computed = make(map[string]map[string]float64)
	s.sim.pending = make(map[string]bool)
}

// similarityLocked merges configured scores with background ones.
// Callers hold simMu.
func (s *Service) similarityLocked() map[string]map[string]float64 {
	if len(s.opts.CardSimilarity) == 0 && len(s.sim.computed) == 0 {
		return nil
	}
	out := make(map[string]map[string]float64, len(s.opts.CardSimilarity)+len(s.sim.computed))
	maps.Copy(out, s.opts.CardSimilarity)
	maps.Copy(out, s.sim.computed)
	return out
}

// RunSimilarity serves background similarity requests until ctx is done.
// It is a no-op unless Options.BackgroundSimilarity is set.
func (s *Service) RunSimilarity(ctx context.Context) error {
	if s.simQueue == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-s.simQueue:
			if err := s.fillSimilarity(id); err != nil {
				s.opts.Logger.Error("cardservice: background similarity failed",
					slog.String("id", id),
					slog.String("error", err.Error()))
			}
		}
	}
}

// fillSimilarity scores cardID against every card with widened
// fingerprints and republishes the snapshot carrying the result.
func (s *Service) fillSimilarity(cardID string) error {
	s.simMu.Lock()
	epoch := s.sim.epoch
	s.simMu.Unlock()

	snap := s.snaps.Stable()
	if _, ok := snap.Cards[cardID]; !ok {
		s.simMu.Lock()
		delete(s.sim.pending, cardID)
		s.simMu.Unlock()
		return nil
	}
	size := s.opts.FingerprintSize
	if size <= 0 {
		size = text.DefaultFingerprintSize
	}
	corpus := text.NewCorpus(snap.Graph(), s.stemmer, text.Options{
		MaxNGram:        s.opts.MaxNGram,
		FingerprintSize: size * preciseFingerprintFactor,
		MemoSize:        s.opts.MemoSize,
	})
	scores := make(map[string]float64)
	for _, sc := range text.ClosestOverlappingItems(corpus.Fingerprint(cardID), corpus.Fingerprints()) {
		if sc.CardID != cardID {
			scores[sc.CardID] = sc.Score
		}
	}

	s.simMu.Lock()
	defer s.simMu.Unlock()
	if s.sim.epoch != epoch {
		// Content changed while computing; the next request recomputes.
		return nil
	}
	s.sim.computed[cardID] = scores
	delete(s.sim.pending, cardID)
	snap = s.snaps.SetSimilarity(s.similarityLocked())
	s.opts.Logger.Debug("cardservice: similarity published",
		slog.String("id", cardID),
		slog.Int("scores", len(scores)),
		slog.Uint64("generation", snap.Generation))
	return nil
}
