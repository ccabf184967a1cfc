// Package cardservice coordinates storage, the index, the snapshot store
// and collection evaluation.
package cardservice

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/starford/cardweb/internal/collection"
	"github.com/starford/cardweb/internal/filter"
	"github.com/starford/cardweb/internal/graph"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/memo"
	"github.com/starford/cardweb/internal/metrics"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/storage"
	"github.com/starford/cardweb/internal/text"
)

// Options tune the engines built for each snapshot.
type Options struct {
	MaxNGram        int
	FingerprintSize int
	MemoSize        int
	UserID          string
	RandomSalt      string
	// Fallbacks and StartCards are keyed by canonical description string.
	Fallbacks  map[string][]string
	StartCards map[string][]string
	// InverseFilters extends the built-in inverse filter names.
	InverseFilters map[string]string
	// CardSimilarity holds precomputed scores keyed by card, then by the
	// similar card. Engines prefer them over local fingerprint overlap.
	CardSimilarity map[string]map[string]float64
	// BackgroundSimilarity lets engines request precise scores for cards
	// missing from CardSimilarity; RunSimilarity computes them.
	BackgroundSimilarity bool
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service is safe for concurrent use. Reads run against immutable
// snapshots; writes are serialized.
type Service struct {
	store storage.Provider
	db    index.CardIndex
	snaps *snapshot.Store
	opts  Options

	parser  *filter.Parser
	stemmer *text.Stemmer
	ranker  *graph.Ranker
	sorts   collection.Registry
	corpora *memo.Cache[uint64, *text.Corpus]

	writeMu sync.Mutex

	simMu    sync.Mutex
	sim      similarityState
	simQueue chan string
}

// NewService wires a service over store and db. snaps receives every
// rebuilt snapshot.
func NewService(store storage.Provider, db index.CardIndex, snaps *snapshot.Store, opts Options) *Service {
	if opts.MemoSize <= 0 {
		opts.MemoSize = memo.DefaultSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	inverses := maps.Clone(snapshot.DefaultInverseFilters)
	maps.Copy(inverses, opts.InverseFilters)

	s := &Service{
		store:   store,
		db:      db,
		snaps:   snaps,
		opts:    opts,
		parser:  filter.NewParser(inverses),
		stemmer: text.NewStemmer(),
		ranker:  graph.NewRanker(opts.MemoSize),
		sorts:   collection.DefaultSorts(),
		corpora: memo.New[uint64, *text.Corpus](opts.MemoSize),
	}
	if opts.BackgroundSimilarity {
		s.simQueue = make(chan string, similarityQueueSize)
	}
	s.resetSimilarityLocked()
	return s
}

// Snapshots exposes the snapshot store, e.g. for change listeners.
func (s *Service) Snapshots() *snapshot.Store {
	return s.snaps
}

// Rebuild loads every indexed card into a fresh stable snapshot.
func (s *Service) Rebuild() (*snapshot.Snapshot, error) {
	snap, err := s.db.LoadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("cardservice: rebuild: %w", err)
	}
	s.simMu.Lock()
	s.resetSimilarityLocked()
	snap.CardSimilarity = s.similarityLocked()
	snap = s.snaps.Replace(snap)
	s.simMu.Unlock()
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordSnapshot(len(snap.Cards))
	}
	s.opts.Logger.Debug("cardservice: snapshot published",
		slog.Uint64("generation", snap.Generation),
		slog.Int("cards", len(snap.Cards)))
	return snap, nil
}

// corpus returns the text corpus for snap, built once per generation.
func (s *Service) corpus(snap *snapshot.Snapshot) *text.Corpus {
	return s.corpora.Do(snap.Generation, func() *text.Corpus {
		return text.NewCorpus(snap.Graph(), s.stemmer, text.Options{
			MaxNGram:        s.opts.MaxNGram,
			FingerprintSize: s.opts.FingerprintSize,
			MemoSize:        s.opts.MemoSize,
		})
	})
}

// environment bundles snap with engines for one request. activeCard fills
// the key-card placeholder.
func (s *Service) environment(snap *snapshot.Snapshot, activeCard string) *collection.Environment {
	corpus := s.corpus(snap)
	engine := filter.NewEngine(snap, corpus, s.parser, filter.Options{
		UserID:     s.opts.UserID,
		ActiveCard: activeCard,
		MemoSize:   s.opts.MemoSize,
		Fetcher:    s.fetcher(),
	})
	return collection.NewEnvironment(snap, corpus, engine, collection.Options{
		Ranker:     s.ranker,
		Sorts:      s.sorts,
		RandomSalt: s.opts.RandomSalt,
		Fallbacks:  s.opts.Fallbacks,
		StartCards: s.opts.StartCards,
	})
}
