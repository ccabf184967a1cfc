package collection

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/cardweb/internal/checksum"
)

// Key orders cards: Num first, Text to break ties.
type Key struct {
	Num  float64
	Text string
}

func compareKeys(a, b Key) int {
	switch {
	case a.Num < b.Num:
		return -1
	case a.Num > b.Num:
		return 1
	}
	return strings.Compare(a.Text, b.Text)
}

// SortValue is the key and display label a sort assigns a card.
type SortValue struct {
	Key   Key    `json:"key"`
	Label string `json:"label"`
}

// Sort is one named ordering.
type Sort struct {
	Name        string
	Description string
	// Label names the value shown next to each card.
	Label string
	// Ascending sorts smallest keys first.
	Ascending bool
	// Reorderable reports whether users may reorder cards by hand under this sort.
	Reorderable bool
	Extract     func(env *Environment, id string) SortValue
}

// Registry maps sort names to sorts.
type Registry map[string]Sort

// DefaultSortName is used for unknown names.
const DefaultSortName = "default"

// Get returns the named sort, or the default sort.
func (r Registry) Get(name string) Sort {
	if s, ok := r[name]; ok {
		return s
	}
	return r[DefaultSortName]
}

// DefaultSorts returns the built-in sorts.
func DefaultSorts() Registry {
	sorts := []Sort{
		{
			Name:        DefaultSortName,
			Description: "Set order, or the order emitted by the first filter with sort values",
			Reorderable: true,
		},
		{
			Name:        "updated",
			Description: "Most recently updated first",
			Label:       "Updated",
			Extract: func(env *Environment, id string) SortValue {
				t := env.Snapshot.Cards[id].UpdatedAt
				return SortValue{Key: Key{Num: float64(t.Unix())}, Label: t.Format("2006-01-02")}
			},
		},
		{
			Name:        "created",
			Description: "Most recently created first",
			Label:       "Created",
			Extract: func(env *Environment, id string) SortValue {
				t := env.Snapshot.Cards[id].CreatedAt
				return SortValue{Key: Key{Num: float64(t.Unix())}, Label: t.Format("2006-01-02")}
			},
		},
		{
			Name:        "title",
			Description: "Alphabetical by title",
			Label:       "Title",
			Ascending:   true,
			Extract: func(env *Environment, id string) SortValue {
				title := strings.ToLower(strings.TrimSpace(env.Snapshot.Cards[id].Title))
				return SortValue{Key: Key{Text: title}, Label: initial(title)}
			},
		},
		{
			Name:        "random",
			Description: "Shuffled by the configured salt",
			Extract: func(env *Environment, id string) SortValue {
				return SortValue{Key: Key{Num: checksum.Salted(env.RandomSalt, id)}}
			},
		},
		{
			Name:        "link-count",
			Description: "Most linked-to first",
			Label:       "Inbound links",
			Extract: func(env *Environment, id string) SortValue {
				n := len(env.Snapshot.Graph().SubstantiveInbound(id))
				return SortValue{Key: Key{Num: float64(n)}, Label: fmt.Sprint(n)}
			},
		},
		{
			Name:        "rank",
			Description: "Highest PageRank first",
			Label:       "Rank",
			Extract: func(env *Environment, id string) SortValue {
				r := env.Ranks()[id]
				return SortValue{Key: Key{Num: r}, Label: fmt.Sprintf("%.3f", r)}
			},
		},
		{
			Name:        "word-count",
			Description: "Longest first",
			Label:       "Words",
			Extract: func(env *Environment, id string) SortValue {
				n := 0
				if ct, ok := env.Corpus.Text(id); ok {
					n = ct.WordCount()
				}
				return SortValue{Key: Key{Num: float64(n)}, Label: fmt.Sprint(n)}
			},
		},
	}
	r := make(Registry, len(sorts))
	for _, s := range sorts {
		r[s.Name] = s
	}
	return r
}

func initial(s string) string {
	for _, r := range s {
		return string(unicode.ToUpper(r))
	}
	return ""
}
