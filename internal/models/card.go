// Package models defines the domain types shared by the card engine and its services.
package models

import "time"

// CardType is the closed set of card kinds.
type CardType string

const (
	CardTypeContent      CardType = "content"
	CardTypeSectionHead  CardType = "section-head"
	CardTypeConcept      CardType = "concept"
	CardTypeQuote        CardType = "quote"
	CardTypeWorkingNotes CardType = "working-notes"
)

// CardTypes lists every known card type.
var CardTypes = []CardType{
	CardTypeContent,
	CardTypeSectionHead,
	CardTypeConcept,
	CardTypeQuote,
	CardTypeWorkingNotes,
}

// Valid reports whether t is one of CardTypes.
func (t CardType) Valid() bool {
	for _, known := range CardTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ReferenceType names a kind of directed edge between cards.
type ReferenceType string

// Card is one document node in the graph. Cards are treated as immutable
// once they are part of a snapshot; edits produce a new Card value.
type Card struct {
	ID            string            `json:"id"`
	Type          CardType          `json:"type"`
	Slugs         []string          `json:"slugs,omitempty"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Notes         string            `json:"notes,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Synonyms      []string          `json:"synonyms,omitempty"`
	Author        string            `json:"author,omitempty"`
	Collaborators []string          `json:"collaborators,omitempty"`
	Section       string            `json:"section,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Published     bool              `json:"published"`

	References        ReferenceBlock `json:"references"`
	InboundReferences ReferenceBlock `json:"inbound_references"`

	StarCount    int `json:"star_count"`
	CommentCount int `json:"comment_count"`

	Path      string    `json:"path,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a shallow copy of c with independent reference blocks.
func (c *Card) Clone() *Card {
	out := *c
	out.References = c.References.Clone()
	out.InboundReferences = c.InboundReferences.Clone()
	return &out
}

// ReferenceBlock maps target card id to reference type to annotation.
// Info mirrors the key set of Targets and serves as a cheap existence index.
type ReferenceBlock struct {
	Targets map[string]map[ReferenceType]string `json:"targets,omitempty"`
	Info    map[string]bool                     `json:"info,omitempty"`
}

// Clone deep-copies the block.
func (b ReferenceBlock) Clone() ReferenceBlock {
	out := ReferenceBlock{
		Targets: make(map[string]map[ReferenceType]string, len(b.Targets)),
		Info:    make(map[string]bool, len(b.Info)),
	}
	for target, types := range b.Targets {
		inner := make(map[ReferenceType]string, len(types))
		for typ, value := range types {
			inner[typ] = value
		}
		out.Targets[target] = inner
	}
	for target, present := range b.Info {
		out.Info[target] = present
	}
	return out
}

// Has reports whether the block holds any reference to target.
func (b ReferenceBlock) Has(target string) bool {
	return b.Info[target]
}

// Len returns the number of distinct targets.
func (b ReferenceBlock) Len() int {
	return len(b.Targets)
}

// FileMetadata describes one card file in the vault.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
