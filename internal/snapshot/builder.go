package snapshot

import (
	"slices"
	"strings"

	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
)

// Membership filter names produced by the Builder.
const (
	FilterStarred       = "starred"
	FilterRead          = "read"
	FilterInReadingList = "in-reading-list"
	FilterPublished     = "published"
	FilterHasBody       = "has-body"
)

// DefaultInverseFilters maps each inverse filter name to the filter it negates.
var DefaultInverseFilters = map[string]string{
	"unstarred":           FilterStarred,
	"unread":              FilterRead,
	"not-in-reading-list": FilterInReadingList,
	"unpublished":         FilterPublished,
	"no-body":             FilterHasBody,
}

// Flags are per-user card states that live outside the card itself.
type Flags struct {
	Starred     bool
	Read        bool
	ReadingList bool
}

// Builder collects cards and produces a Snapshot.
type Builder struct {
	cards map[string]*models.Card
	flags map[string]Flags
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		cards: make(map[string]*models.Card),
		flags: make(map[string]Flags),
	}
}

// Add registers a card. A later card with the same id replaces the earlier one.
func (b *Builder) Add(card *models.Card, flags Flags) {
	b.cards[card.ID] = card
	b.flags[card.ID] = flags
}

// Len returns the number of cards added.
func (b *Builder) Len() int {
	return len(b.cards)
}

// Build derives inbound references, base sets and membership filters.
func (b *Builder) Build() *Snapshot {
	cards := references.WithInbound(b.cards)

	ids := make([]string, 0, len(cards))
	for id := range cards {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	filters := map[string]map[string]bool{
		FilterStarred:       {},
		FilterRead:          {},
		FilterInReadingList: {},
		FilterPublished:     {},
		FilterHasBody:       {},
	}
	mark := func(name, id string) {
		if filters[name] == nil {
			filters[name] = make(map[string]bool)
		}
		filters[name][id] = true
	}

	var main, readingList []string
	for _, id := range ids {
		c, f := cards[id], b.flags[id]
		if f.Starred {
			mark(FilterStarred, id)
		}
		if f.Read {
			mark(FilterRead, id)
		}
		if f.ReadingList {
			mark(FilterInReadingList, id)
			readingList = append(readingList, id)
		}
		if c.Published {
			mark(FilterPublished, id)
		}
		if strings.TrimSpace(c.Body) != "" {
			mark(FilterHasBody, id)
		}
		for _, tag := range c.Tags {
			mark("tag-"+tag, id)
		}
		if c.Section != "" {
			mark("section-"+c.Section, id)
			main = append(main, id)
		}
		if c.Type != "" {
			mark("type-"+string(c.Type), id)
		}
	}
	slices.SortStableFunc(main, func(a, b string) int {
		return strings.Compare(cards[a].Section, cards[b].Section)
	})

	return &Snapshot{
		Cards: cards,
		Sets: map[string][]string{
			SetEverything:  ids,
			SetMain:        main,
			SetReadingList: readingList,
		},
		Filters: filters,
	}
}
