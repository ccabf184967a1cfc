// Package graph implements traversal and ranking over the reference graph.
package graph

import (
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
)

// Direction selects which edges a traversal follows.
type Direction int

const (
	Outbound Direction = iota
	Inbound
	Both
)

// String returns the filter-name suffix of d.
func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return "both"
	}
}

// BoundedBFS returns every card reachable from starts within maxPly hops,
// mapped to its distance. Edges are substantive references unless types
// is non-nil. maxPly <= 0 means unlimited. Start cards are recorded at 0
// only when includeStart is set; targets missing from g are skipped.
func BoundedBFS(g *references.Graph, starts []string, dir Direction, maxPly int, includeStart bool, types []models.ReferenceType) map[string]int {
	if types == nil {
		types = references.SubstantiveTypes()
	}
	dist := make(map[string]int)
	visited := make(map[string]bool)
	var frontier []string
	for _, id := range starts {
		if !g.Has(id) || visited[id] {
			continue
		}
		visited[id] = true
		frontier = append(frontier, id)
		if includeStart {
			dist[id] = 0
		}
	}

	for ply := 1; len(frontier) > 0 && (maxPly <= 0 || ply <= maxPly); ply++ {
		var next []string
		for _, id := range frontier {
			for _, n := range neighbors(g, id, dir, types) {
				if visited[n] || !g.Has(n) {
					continue
				}
				visited[n] = true
				dist[n] = ply
				next = append(next, n)
			}
		}
		frontier = next
	}
	return dist
}

func neighbors(g *references.Graph, id string, dir Direction, types []models.ReferenceType) []string {
	switch dir {
	case Outbound:
		return g.Outbound(id, types)
	case Inbound:
		return g.Inbound(id, types)
	default:
		return append(g.Outbound(id, types), g.Inbound(id, types)...)
	}
}

// TwoWayBFS traverses inbound and outbound edges separately. Inbound
// distances are negated; where a card is reachable both ways the outbound
// distance is kept. Start cards always map to 0 when included.
func TwoWayBFS(g *references.Graph, starts []string, maxPly int, includeStart bool, types []models.ReferenceType) map[string]int {
	out := make(map[string]int)
	for id, d := range BoundedBFS(g, starts, Inbound, maxPly, false, types) {
		out[id] = -d
	}
	for id, d := range BoundedBFS(g, starts, Outbound, maxPly, false, types) {
		out[id] = d
	}
	for _, id := range starts {
		if !g.Has(id) {
			continue
		}
		if includeStart {
			out[id] = 0
		} else {
			delete(out, id)
		}
	}
	return out
}
