package graph

import (
	"math"
	"slices"

	"github.com/starford/cardweb/internal/memo"
	"github.com/starford/cardweb/internal/references"
)

const (
	Damping       = 0.85
	MaxIterations = 50
	Epsilon       = 0.005
)

// Ranker computes PageRank over substantive references and remembers the
// result per snapshot generation.
type Ranker struct {
	cache *memo.Cache[uint64, map[string]float64]
}

// NewRanker creates a Ranker remembering the last size generations.
func NewRanker(size int) *Ranker {
	return &Ranker{cache: memo.New[uint64, map[string]float64](size)}
}

// Rank returns the rank of every card in g. generation identifies the
// snapshot g was built from; a new generation always recomputes.
func (r *Ranker) Rank(generation uint64, g *references.Graph) map[string]float64 {
	return r.cache.Do(generation, func() map[string]float64 {
		return PageRank(g)
	})
}

// PageRank runs the damped power method until the L1 change drops below
// Epsilon or MaxIterations is reached. Only links between cards of g count.
func PageRank(g *references.Graph) map[string]float64 {
	cards := g.Cards()
	n := len(cards)
	if n == 0 {
		return map[string]float64{}
	}
	ids := make([]string, 0, n)
	for id := range cards {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	out := make([][]int, n)
	inDegree := make([]int, n)
	for i, id := range ids {
		for _, target := range g.SubstantiveOutbound(id) {
			j, ok := index[target]
			if !ok || j == i {
				continue
			}
			out[i] = append(out[i], j)
			inDegree[j]++
		}
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < MaxIterations; iter++ {
		clear(next)
		for i, targets := range out {
			if len(targets) == 0 {
				continue
			}
			share := Damping * rank[i] / float64(len(targets))
			for _, j := range targets {
				next[j] += share
			}
		}
		var distributed float64
		for i := range next {
			if inDegree[i] == 0 {
				next[i] = 0
			}
			distributed += next[i]
		}
		leaked := (1 - distributed) / float64(n)
		var delta float64
		for i := range next {
			next[i] += leaked
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < Epsilon {
			break
		}
	}

	result := make(map[string]float64, n)
	for i, id := range ids {
		result[id] = rank[i]
	}
	return result
}
