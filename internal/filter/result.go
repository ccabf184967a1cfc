package filter

import (
	"maps"
	"slices"
)

// Result is the evaluated form of an expression. A card matches when its
// membership differs from Inverted, so complements never enumerate the
// whole snapshot.
type Result struct {
	Members  map[string]bool
	Inverted bool
	// SortValues holds the per-card value emitted by the filter, if any.
	SortValues map[string]float64
	// Ascending is set when smaller values sort first.
	Ascending bool
	// Preview is set when the result is provisional and a fresher one
	// will be available once an outstanding lookup completes.
	Preview bool
	// Known is false when the expression names nothing the engine recognizes.
	Known bool
	Spec  *Spec
}

// Matches reports whether id passes the filter.
func (r Result) Matches(id string) bool {
	return r.Members[id] != r.Inverted
}

// SortValue returns the value emitted for id.
func (r Result) SortValue(id string) (float64, bool) {
	v, ok := r.SortValues[id]
	return v, ok
}

// HasSortValues reports whether the filter emitted any sort values.
func (r Result) HasSortValues() bool {
	return len(r.SortValues) > 0
}

func everything() Result {
	return Result{Inverted: true, Known: true}
}

func nothing() Result {
	return Result{}
}

func members(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// Filter returns the ids of candidates that match, preserving order.
func (r Result) Filter(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if r.Matches(id) {
			out = append(out, id)
		}
	}
	return out
}

// MatchingIDs returns the sorted ids among universe that match.
func (r Result) MatchingIDs(universe map[string]bool) []string {
	if !r.Inverted {
		out := make([]string, 0, len(r.Members))
		for id := range r.Members {
			if universe == nil || universe[id] {
				out = append(out, id)
			}
		}
		slices.Sort(out)
		return out
	}
	return r.Filter(slices.Sorted(maps.Keys(universe)))
}
