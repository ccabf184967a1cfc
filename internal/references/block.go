package references

import (
	"fmt"

	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/models"
)

// Lookup answers the questions reference validation needs about other cards.
type Lookup interface {
	CardExists(id string) bool
	CardType(id string) models.CardType
}

// MapLookup adapts a card map to Lookup.
type MapLookup map[string]*models.Card

// CardExists implements Lookup.
func (m MapLookup) CardExists(id string) bool {
	_, ok := m[id]
	return ok
}

// CardType implements Lookup.
func (m MapLookup) CardType(id string) models.CardType {
	if c, ok := m[id]; ok {
		return c.Type
	}
	return ""
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrRejected, fmt.Sprintf(format, args...))
}

// Validate checks whether card may hold a reference of type typ to target.
// The returned error wraps apperr.ErrRejected and carries the reason.
func Validate(card *models.Card, lookup Lookup, target string, typ models.ReferenceType) error {
	ti, ok := Info(typ)
	if !ok {
		return rejected("unknown reference type %q", typ)
	}
	if target == card.ID {
		return rejected("self reference")
	}
	if !lookup.CardExists(target) {
		return rejected("unknown target %q", target)
	}
	if !ti.AllowsFrom(card.Type) {
		return rejected("reference type %s not allowed from card type %s", typ, card.Type)
	}
	if targetType := lookup.CardType(target); !ti.AllowsTo(targetType) {
		return rejected("reference type %s not allowed to card type %s", typ, targetType)
	}
	if ti.ConceptClass {
		for existing := range card.References.Targets[target] {
			if existing != typ && IsConceptClass(existing) {
				return rejected("duplicate concept reference: %s already present to %s", existing, target)
			}
		}
	}
	return nil
}

// Set returns a copy of card whose outbound block holds the reference.
// card itself is never modified.
func Set(card *models.Card, lookup Lookup, target string, typ models.ReferenceType, value string) (*models.Card, error) {
	if err := Validate(card, lookup, target, typ); err != nil {
		return nil, err
	}
	out := card.Clone()
	if out.References.Targets[target] == nil {
		out.References.Targets[target] = make(map[models.ReferenceType]string)
	}
	out.References.Targets[target][typ] = value
	out.References.Info[target] = true
	return out, nil
}

// Remove returns a copy of card without the given reference. Removing the
// last type to a target removes the target key from both maps.
func Remove(card *models.Card, target string, typ models.ReferenceType) *models.Card {
	out := card.Clone()
	types, ok := out.References.Targets[target]
	if !ok {
		return out
	}
	delete(types, typ)
	if len(types) == 0 {
		delete(out.References.Targets, target)
		delete(out.References.Info, target)
	}
	return out
}

// LegalShape verifies the block invariants: every target has a non-empty
// type map and the Info index has exactly the same key set.
func LegalShape(b models.ReferenceBlock) error {
	if len(b.Targets) != len(b.Info) {
		return rejected("info has %d keys but references has %d", len(b.Info), len(b.Targets))
	}
	for target, types := range b.Targets {
		if len(types) == 0 {
			return rejected("target %q has no reference types", target)
		}
		if !b.Info[target] {
			return rejected("target %q missing from info", target)
		}
		for typ := range types {
			if !Known(typ) {
				return rejected("target %q has unknown reference type %q", target, typ)
			}
		}
	}
	return nil
}

// FromTargets builds a well-formed block from a target map, dropping empty entries.
func FromTargets(targets map[string]map[models.ReferenceType]string) models.ReferenceBlock {
	out := models.ReferenceBlock{
		Targets: make(map[string]map[models.ReferenceType]string, len(targets)),
		Info:    make(map[string]bool, len(targets)),
	}
	for target, types := range targets {
		if len(types) == 0 {
			continue
		}
		inner := make(map[models.ReferenceType]string, len(types))
		for typ, value := range types {
			inner[typ] = value
		}
		out.Targets[target] = inner
		out.Info[target] = true
	}
	return out
}

// UnionOf returns a synthetic block holding every reference present in any
// of the given cards. When two cards disagree on an annotation the first wins.
func UnionOf(cards []*models.Card) models.ReferenceBlock {
	acc := make(map[string]map[models.ReferenceType]string)
	for _, c := range cards {
		for target, types := range c.References.Targets {
			if acc[target] == nil {
				acc[target] = make(map[models.ReferenceType]string)
			}
			for typ, value := range types {
				if _, seen := acc[target][typ]; !seen {
					acc[target][typ] = value
				}
			}
		}
	}
	return FromTargets(acc)
}

// IntersectionOf returns a synthetic block holding only the references
// (target and type) present in every given card. Annotations come from the first card.
func IntersectionOf(cards []*models.Card) models.ReferenceBlock {
	if len(cards) == 0 {
		return FromTargets(nil)
	}
	acc := make(map[string]map[models.ReferenceType]string)
	for target, types := range cards[0].References.Targets {
	typeLoop:
		for typ, value := range types {
			for _, other := range cards[1:] {
				if _, ok := other.References.Targets[target][typ]; !ok {
					continue typeLoop
				}
			}
			if acc[target] == nil {
				acc[target] = make(map[models.ReferenceType]string)
			}
			acc[target][typ] = value
		}
	}
	return FromTargets(acc)
}
