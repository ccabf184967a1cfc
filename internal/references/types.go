// Package references implements the typed reference graph between cards:
// the reference type table, copy-on-write block mutation with validation,
// structural diffs for persistence, and a per-snapshot accessor.
package references

import (
	"slices"

	"github.com/starford/cardweb/internal/models"
)

const (
	Link       models.ReferenceType = "link"
	DupeOf     models.ReferenceType = "dupe-of"
	Ack        models.ReferenceType = "ack"
	SeeAlso    models.ReferenceType = "see-also"
	Citation   models.ReferenceType = "citation"
	Concept    models.ReferenceType = "concept"
	ExampleOf  models.ReferenceType = "example-of"
	Synonym    models.ReferenceType = "synonym"
	OppositeOf models.ReferenceType = "opposite-of"
)

// TypeInfo describes the attributes of one reference type.
type TypeInfo struct {
	Name        models.ReferenceType
	Description string
	// Substantive references count toward traversal and ranking.
	Substantive bool
	// ConceptClass references tie a card to a concept; a card may hold at
	// most one of them per target.
	ConceptClass bool
	// FromTypes and ToTypes restrict which card types may originate or
	// receive the reference. Empty means any type.
	FromTypes          []models.CardType
	ToTypes            []models.CardType
	NeedsReciprocation bool
}

// AllowsFrom reports whether a card of type t may originate this reference.
func (ti TypeInfo) AllowsFrom(t models.CardType) bool {
	return len(ti.FromTypes) == 0 || slices.Contains(ti.FromTypes, t)
}

// AllowsTo reports whether a card of type t may receive this reference.
func (ti TypeInfo) AllowsTo(t models.CardType) bool {
	return len(ti.ToTypes) == 0 || slices.Contains(ti.ToTypes, t)
}

var conceptOnly = []models.CardType{models.CardTypeConcept}

var typeTable = map[models.ReferenceType]TypeInfo{
	Link: {
		Name:        Link,
		Description: "An inline link in the body",
		Substantive: true,
	},
	DupeOf: {
		Name:        DupeOf,
		Description: "The card duplicates the target",
	},
	Ack: {
		Name:        Ack,
		Description: "Acknowledges the target without depending on it",
	},
	SeeAlso: {
		Name:        SeeAlso,
		Description: "Related reading",
		Substantive: true,
	},
	Citation: {
		Name:        Citation,
		Description: "Cites the target as a source",
		Substantive: true,
	},
	Concept: {
		Name:         Concept,
		Description:  "The card is about the target concept",
		Substantive:  true,
		ConceptClass: true,
		ToTypes:      conceptOnly,
	},
	ExampleOf: {
		Name:         ExampleOf,
		Description:  "The card is an example of the target concept",
		Substantive:  true,
		ConceptClass: true,
		ToTypes:      conceptOnly,
	},
	Synonym: {
		Name:               Synonym,
		Description:        "The concept means the same as the target concept",
		Substantive:        true,
		ConceptClass:       true,
		FromTypes:          conceptOnly,
		ToTypes:            conceptOnly,
		NeedsReciprocation: true,
	},
	OppositeOf: {
		Name:               OppositeOf,
		Description:        "The concept is the opposite of the target concept",
		Substantive:        true,
		FromTypes:          conceptOnly,
		ToTypes:            conceptOnly,
		NeedsReciprocation: true,
	},
}

// Info returns the attributes of t.
func Info(t models.ReferenceType) (TypeInfo, bool) {
	ti, ok := typeTable[t]
	return ti, ok
}

// Known reports whether t is in the type table.
func Known(t models.ReferenceType) bool {
	_, ok := typeTable[t]
	return ok
}

// IsSubstantive reports whether t counts for traversal and ranking.
func IsSubstantive(t models.ReferenceType) bool {
	return typeTable[t].Substantive
}

// IsConceptClass reports whether t belongs to the concept equivalence class.
func IsConceptClass(t models.ReferenceType) bool {
	return typeTable[t].ConceptClass
}

// AllTypes returns every reference type in name order.
func AllTypes() []models.ReferenceType {
	return typesWhere(func(TypeInfo) bool { return true })
}

// SubstantiveTypes returns the substantive reference types in name order.
func SubstantiveTypes() []models.ReferenceType {
	return typesWhere(func(ti TypeInfo) bool { return ti.Substantive })
}

// ConceptClassTypes returns the concept-class reference types in name order.
func ConceptClassTypes() []models.ReferenceType {
	return typesWhere(func(ti TypeInfo) bool { return ti.ConceptClass })
}

func typesWhere(keep func(TypeInfo) bool) []models.ReferenceType {
	var out []models.ReferenceType
	for name, ti := range typeTable {
		if keep(ti) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
