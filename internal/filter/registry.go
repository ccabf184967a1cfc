// Package filter parses filter expressions into a typed AST and evaluates
// them against a card snapshot.
package filter

import (
	"slices"
	"strings"
)

// Kind identifies a configurable filter.
type Kind int

const (
	KindUnknown Kind = iota
	KindChildren
	KindDescendants
	KindParents
	KindAncestors
	KindDirectConnections
	KindConnections
	KindDirectReferences
	KindReferences
	KindDirectReferencesInbound
	KindReferencesInbound
	KindDirectReferencesOutbound
	KindReferencesOutbound
	KindAuthor
	KindCards
	KindQuery
	KindQueryStrict
	KindSimilar
	KindSimilarCutoff
	KindAboutConcept
	KindMissingConcept
	KindSameType
	KindDifferentType
	KindLimit
	KindOffset
	KindExclude
	KindCombine
	KindExpand
)

// KeyCard is the placeholder replaced by the currently active card.
const KeyCard = "key-card"

// Me is the author placeholder replaced by the querying user.
const Me = "me"

// Spec describes one configurable filter: how many path segments it
// consumes and how its result should be presented.
type Spec struct {
	Name        string
	Kind        Kind
	Arity       int
	Description string
	// Defaults fill arguments missing at the end of a path.
	Defaults []string
	// Nested is set when every argument is itself a filter expression.
	Nested bool
	// SortValue is set when the filter emits a per-card sort value.
	SortValue bool
	// SuppressLabels hides auto-generated labels for the emitted values.
	SuppressLabels bool
	// Label names the emitted sort value.
	Label string
}

var specs = []Spec{
	{Name: "children", Kind: KindChildren, Arity: 1, Defaults: []string{KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards the given cards link to"},
	{Name: "descendants", Kind: KindDescendants, Arity: 2, Defaults: []string{KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards reachable by outbound links within ply hops"},
	{Name: "parents", Kind: KindParents, Arity: 1, Defaults: []string{KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards that link to the given cards"},
	{Name: "ancestors", Kind: KindAncestors, Arity: 2, Defaults: []string{KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards reaching the given cards by inbound links within ply hops"},
	{Name: "direct-connections", Kind: KindDirectConnections, Arity: 1, Defaults: []string{KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards linked to or from the given cards"},
	{Name: "connections", Kind: KindConnections, Arity: 2, Defaults: []string{KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards linked to or from the given cards within ply hops"},
	{Name: "direct-references", Kind: KindDirectReferences, Arity: 2, Defaults: []string{"link", KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards referencing or referenced by the given cards with the given types"},
	{Name: "references", Kind: KindReferences, Arity: 3, Defaults: []string{"link", KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards connected by the given reference types within ply hops"},
	{Name: "direct-references-inbound", Kind: KindDirectReferencesInbound, Arity: 2, Defaults: []string{"link", KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards referencing the given cards with the given types"},
	{Name: "references-inbound", Kind: KindReferencesInbound, Arity: 3, Defaults: []string{"link", KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards reaching the given cards by inbound references within ply hops"},
	{Name: "direct-references-outbound", Kind: KindDirectReferencesOutbound, Arity: 2, Defaults: []string{"link", KeyCard}, SortValue: true, Label: "Degree",
		Description: "Cards the given cards reference with the given types"},
	{Name: "references-outbound", Kind: KindReferencesOutbound, Arity: 3, Defaults: []string{"link", KeyCard, "2"}, SortValue: true, Label: "Degree",
		Description: "Cards reachable by outbound references within ply hops"},
	{Name: "author", Kind: KindAuthor, Arity: 1, Defaults: []string{Me},
		Description: "Cards authored or co-authored by any of the given users"},
	{Name: "cards", Kind: KindCards, Arity: 1, Defaults: []string{KeyCard}, SortValue: true, SuppressLabels: true,
		Description: "Exactly the given cards, in the given order"},
	{Name: "query", Kind: KindQuery, Arity: 1, Defaults: []string{""}, SortValue: true, SuppressLabels: true, Label: "Score",
		Description: "Cards matching a text query"},
	{Name: "query-strict", Kind: KindQueryStrict, Arity: 1, Defaults: []string{""}, SortValue: true, SuppressLabels: true, Label: "Score",
		Description: "Cards fully matching a text query"},
	{Name: "similar", Kind: KindSimilar, Arity: 1, Defaults: []string{KeyCard}, SortValue: true, SuppressLabels: true, Label: "Similarity",
		Description: "Cards sharing salient terms with the given cards"},
	{Name: "similar-cutoff", Kind: KindSimilarCutoff, Arity: 2, Defaults: []string{KeyCard, "1"}, SortValue: true, SuppressLabels: true, Label: "Similarity",
		Description: "Cards at least as similar as the cutoff to the given cards"},
	{Name: "about-concept", Kind: KindAboutConcept, Arity: 1, Defaults: []string{KeyCard},
		Description: "Cards that reference the concept"},
	{Name: "missing-concept", Kind: KindMissingConcept, Arity: 1, Defaults: []string{KeyCard},
		Description: "Cards that mention the concept without referencing it"},
	{Name: "same-type", Kind: KindSameType, Arity: 1, Defaults: []string{KeyCard},
		Description: "Cards of the same type as the given card"},
	{Name: "different-type", Kind: KindDifferentType, Arity: 1, Defaults: []string{KeyCard},
		Description: "Cards of a different type than the given card"},
	{Name: "limit", Kind: KindLimit, Arity: 1, Defaults: []string{"0"},
		Description: "Show at most n cards"},
	{Name: "offset", Kind: KindOffset, Arity: 1, Defaults: []string{"0"},
		Description: "Skip the first n cards"},
	{Name: "exclude", Kind: KindExclude, Arity: 1, Nested: true,
		Description: "Cards not matching the filter"},
	{Name: "combine", Kind: KindCombine, Arity: 2, Nested: true,
		Description: "Cards matching either filter"},
	{Name: "expand", Kind: KindExpand, Arity: 2, Nested: true, SortValue: true, Label: "Degree",
		Description: "Cards matching the first filter plus everything the second filter reaches from them"},
}

var byName = func() map[string]Spec {
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}()

// Lookup returns the spec of a configurable filter name.
func Lookup(name string) (Spec, bool) {
	s, ok := byName[name]
	return s, ok
}

// Arity returns how many segments follow name, or 0 for plain names.
func Arity(name string) int {
	return byName[name].Arity
}

// Specs returns every configurable filter sorted by name.
func Specs() []Spec {
	out := slices.Clone(specs)
	slices.SortFunc(out, func(a, b Spec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
