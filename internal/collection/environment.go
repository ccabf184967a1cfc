// Package collection evaluates collection descriptions against a snapshot:
// filtering, fallbacks, sorting, pagination, labels and the web view.
package collection

import (
	"github.com/starford/cardweb/internal/filter"
	"github.com/starford/cardweb/internal/graph"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/text"
)

// Options configure an Environment.
type Options struct {
	// Ranker is shared across environments so ranks survive per generation.
	Ranker *graph.Ranker
	Sorts  Registry
	// RandomSalt seeds the random sort.
	RandomSalt string
	// Fallbacks and StartCards are keyed by canonical description.
	Fallbacks  map[string][]string
	StartCards map[string][]string
}

// Environment is everything collections built on one snapshot share.
type Environment struct {
	Snapshot   *snapshot.Snapshot
	Corpus     *text.Corpus
	Engine     *filter.Engine
	Ranker     *graph.Ranker
	Sorts      Registry
	RandomSalt string
	Fallbacks  map[string][]string
	StartCards map[string][]string
}

// NewEnvironment bundles a snapshot with the engines evaluated against it.
func NewEnvironment(snap *snapshot.Snapshot, corpus *text.Corpus, engine *filter.Engine, opts Options) *Environment {
	if opts.Ranker == nil {
		opts.Ranker = graph.NewRanker(0)
	}
	if opts.Sorts == nil {
		opts.Sorts = DefaultSorts()
	}
	return &Environment{
		Snapshot:   snap,
		Corpus:     corpus,
		Engine:     engine,
		Ranker:     opts.Ranker,
		Sorts:      opts.Sorts,
		RandomSalt: opts.RandomSalt,
		Fallbacks:  opts.Fallbacks,
		StartCards: opts.StartCards,
	}
}

// Ranks returns the PageRank of every card in the snapshot.
func (env *Environment) Ranks() map[string]float64 {
	return env.Ranker.Rank(env.Snapshot.Generation, env.Snapshot.Graph())
}

// known keeps the ids present in the snapshot.
func (env *Environment) known(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := env.Snapshot.Cards[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
