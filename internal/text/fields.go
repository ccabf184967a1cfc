package text

import (
	"slices"
	"strings"

	"github.com/starford/cardweb/internal/models"
)

// FieldConfig controls how one card field participates in indexing and search.
type FieldConfig struct {
	Name string
	// IndexingCount scales n-gram weights for fingerprints. Zero excludes the field.
	IndexingCount float64
	// QueryWeight scales query clause weights. Zero excludes the field from search.
	QueryWeight float64
}

// FixedFields are the built-in card fields in processing order.
var FixedFields = []FieldConfig{
	{Name: "title", IndexingCount: 1, QueryWeight: 1},
	{Name: "body", IndexingCount: 1, QueryWeight: 0.5},
	{Name: "notes", IndexingCount: 0, QueryWeight: 0.25},
}

// freeformField applies to every entry of Card.Fields.
var freeformField = FieldConfig{IndexingCount: 1, QueryWeight: 0.5}

// Field is one processed card field.
type Field struct {
	Config FieldConfig
	Runs   []Run
}

// CardText holds the processed fields of one card.
type CardText struct {
	CardID string
	Fields []Field
}

// NewField splits text into runs and processes each.
func (s *Stemmer) NewField(cfg FieldConfig, text string) Field {
	f := Field{Config: cfg}
	for _, part := range splitRuns(text) {
		r := s.NewRun(part)
		if r.Normalized != "" {
			f.Runs = append(f.Runs, r)
		}
	}
	return f
}

// NewCardText processes every indexed field of c. Body Markdown is
// reduced to plain text first.
func (s *Stemmer) NewCardText(c *models.Card) *CardText {
	ct := &CardText{CardID: c.ID}
	for _, cfg := range FixedFields {
		var raw string
		switch cfg.Name {
		case "title":
			raw = c.Title
		case "body":
			raw = PlainText(c.Body)
		case "notes":
			raw = c.Notes
		}
		ct.Fields = append(ct.Fields, s.NewField(cfg, raw))
	}

	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		cfg := freeformField
		cfg.Name = name
		ct.Fields = append(ct.Fields, s.NewField(cfg, c.Fields[name]))
	}
	return ct
}

// WordCount returns the number of normalized words across indexed fields.
func (ct *CardText) WordCount() int {
	n := 0
	for _, f := range ct.Fields {
		if f.Config.IndexingCount == 0 {
			continue
		}
		for _, r := range f.Runs {
			n += len(strings.Fields(r.Normalized))
		}
	}
	return n
}
