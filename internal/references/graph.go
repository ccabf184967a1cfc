package references

import (
	"slices"

	"github.com/starford/cardweb/internal/models"
)

// Graph is a read-only view over the references of one card snapshot.
// Edge lists are computed once at construction; a new snapshot needs a new Graph.
type Graph struct {
	cards map[string]*models.Card
	out   map[string]map[models.ReferenceType][]string
	in    map[string]map[models.ReferenceType][]string
}

// NewGraph indexes the outbound blocks of cards and derives the inbound mirror from them.
func NewGraph(cards map[string]*models.Card) *Graph {
	g := &Graph{
		cards: cards,
		out:   make(map[string]map[models.ReferenceType][]string, len(cards)),
		in:    make(map[string]map[models.ReferenceType][]string),
	}
	for id, c := range cards {
		byType := make(map[models.ReferenceType][]string)
		for target, types := range c.References.Targets {
			for typ := range types {
				byType[typ] = append(byType[typ], target)
				if g.in[target] == nil {
					g.in[target] = make(map[models.ReferenceType][]string)
				}
				g.in[target][typ] = append(g.in[target][typ], id)
			}
		}
		g.out[id] = byType
	}
	for _, m := range []map[string]map[models.ReferenceType][]string{g.out, g.in} {
		for _, byType := range m {
			for _, ids := range byType {
				slices.Sort(ids)
			}
		}
	}
	return g
}

// Card returns the card with id, if present.
func (g *Graph) Card(id string) (*models.Card, bool) {
	c, ok := g.cards[id]
	return c, ok
}

// Has reports whether id is part of the snapshot.
func (g *Graph) Has(id string) bool {
	_, ok := g.cards[id]
	return ok
}

// Cards returns the snapshot's card map.
func (g *Graph) Cards() map[string]*models.Card {
	return g.cards
}

// OutboundByType returns the targets of id grouped by reference type.
func (g *Graph) OutboundByType(id string) map[models.ReferenceType][]string {
	return g.out[id]
}

// InboundByType returns the cards pointing at id grouped by reference type.
func (g *Graph) InboundByType(id string) map[models.ReferenceType][]string {
	return g.in[id]
}

// Outbound returns the distinct targets of id reachable by any of types.
// A nil types slice means every type.
func (g *Graph) Outbound(id string, types []models.ReferenceType) []string {
	return collect(g.out[id], types)
}

// Inbound returns the distinct sources pointing at id by any of types.
// A nil types slice means every type.
func (g *Graph) Inbound(id string, types []models.ReferenceType) []string {
	return collect(g.in[id], types)
}

// SubstantiveOutbound returns targets of id over substantive reference types.
func (g *Graph) SubstantiveOutbound(id string) []string {
	return collect(g.out[id], SubstantiveTypes())
}

// SubstantiveInbound returns sources pointing at id over substantive reference types.
func (g *Graph) SubstantiveInbound(id string) []string {
	return collect(g.in[id], SubstantiveTypes())
}

func collect(byType map[models.ReferenceType][]string, types []models.ReferenceType) []string {
	if len(byType) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	add := func(ids []string) {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	if types == nil {
		for _, ids := range byType {
			add(ids)
		}
	} else {
		for _, t := range types {
			add(byType[t])
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// WithInbound returns a new card map whose InboundReferences mirror the
// union of all outbound blocks. Input cards are not modified.
func WithInbound(cards map[string]*models.Card) map[string]*models.Card {
	inbound := make(map[string]map[string]map[models.ReferenceType]string)
	for id, c := range cards {
		for target, types := range c.References.Targets {
			if inbound[target] == nil {
				inbound[target] = make(map[string]map[models.ReferenceType]string)
			}
			inbound[target][id] = types
		}
	}
	out := make(map[string]*models.Card, len(cards))
	for id, c := range cards {
		cp := *c
		cp.InboundReferences = FromTargets(inbound[id])
		out[id] = &cp
	}
	return out
}

// CheckInbound verifies that every card's inbound mirror matches the outbound blocks.
func CheckInbound(cards map[string]*models.Card) error {
	expected := WithInbound(cards)
	for id, c := range cards {
		want := expected[id].InboundReferences
		if d := DiffBlocks(c.InboundReferences, want); !d.Empty() {
			return rejected("inbound references of %q out of sync", id)
		}
		if err := LegalShape(c.InboundReferences); err != nil {
			return err
		}
	}
	return nil
}
