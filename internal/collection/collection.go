package collection

import (
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/starford/cardweb/internal/description"
	"github.com/starford/cardweb/internal/filter"
)

// Collection is the lazily computed result of a description over one
// environment. Each stage is computed at most once.
type Collection struct {
	desc description.Description
	env  *Environment

	filterOnce sync.Once
	filtered   []string
	results    []filter.Result
	isFallback bool
	preview    bool

	sortOnce   sync.Once
	sorted     []string
	sortValues map[string]SortValue
	sortLabels bool

	pageOnce  sync.Once
	paginated []string
	rawLabels []string
	labels    []string

	webOnce sync.Once
	web     *WebInfo
}

// New creates a collection. Nothing is computed until a property is read.
func New(desc description.Description, env *Environment) *Collection {
	return &Collection{desc: desc, env: env}
}

// Description returns the description the collection was built from.
func (c *Collection) Description() description.Description {
	return c.desc
}

func (c *Collection) filter() {
	c.filterOnce.Do(func() {
		base, _ := c.env.Snapshot.Set(c.desc.Set)
		ids := base
		engine := c.env.Engine
		for _, f := range c.desc.Filters {
			r := engine.Evaluate(engine.Parser().ParseString(f))
			if !r.Known {
				continue
			}
			c.results = append(c.results, r)
			c.preview = c.preview || r.Preview
			ids = r.Filter(ids)
		}
		if len(ids) == 0 {
			if fb := c.env.known(c.env.Fallbacks[c.desc.Serialize()]); len(fb) > 0 {
				ids, c.isFallback = fb, true
			}
		}
		c.filtered = slices.Clone(ids)
	})
}

// FilteredCards returns the base set narrowed by every filter, or the
// fallback list when nothing matched.
func (c *Collection) FilteredCards() []string {
	c.filter()
	return c.filtered
}

// IsFallback reports whether FilteredCards came from the fallback list.
func (c *Collection) IsFallback() bool {
	c.filter()
	return c.isFallback
}

// Preview reports whether a filter result is provisional.
func (c *Collection) Preview() bool {
	c.filter()
	return c.preview
}

func (c *Collection) sort() {
	c.sortOnce.Do(func() {
		ids := slices.Clone(c.FilteredCards())
		values := make(map[string]SortValue, len(ids))
		missing := make(map[string]bool)
		s := c.env.Sorts.Get(c.desc.Sort)
		ascending := s.Ascending
		c.sortLabels = s.Label != ""

		switch {
		case s.Extract != nil:
			for _, id := range ids {
				values[id] = s.Extract(c.env, id)
			}
		default:
			if r, ok := c.drivingResult(); ok {
				ascending = r.Ascending
				c.sortLabels = r.Spec == nil || !r.Spec.SuppressLabels
				for _, id := range ids {
					v, ok := r.SortValue(id)
					if !ok {
						// Cards without a value go last.
						missing[id] = true
						if ascending {
							v = math.MaxFloat64
						} else {
							v = -math.MaxFloat64
						}
					}
					values[id] = SortValue{Key: Key{Num: v}, Label: formatValue(v, ok)}
				}
			}
		}

		if len(values) > 0 {
			slices.SortStableFunc(ids, func(a, b string) int {
				if ascending {
					return compareKeys(values[a].Key, values[b].Key)
				}
				return compareKeys(values[b].Key, values[a].Key)
			})
		}
		if c.desc.SortReversed {
			ids = reverseKeepingLast(ids, missing)
		}
		c.sorted, c.sortValues = ids, values
	})
}

// reverseKeepingLast reverses ids except that the ids in last stay at
// the end in their current order.
func reverseKeepingLast(ids []string, last map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !last[id] {
			out = append(out, id)
		}
	}
	slices.Reverse(out)
	for _, id := range ids {
		if last[id] {
			out = append(out, id)
		}
	}
	return out
}

func formatValue(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// drivingResult is the first filter, left to right, that emitted sort values.
func (c *Collection) drivingResult() (filter.Result, bool) {
	c.filter()
	for _, r := range c.results {
		if r.HasSortValues() {
			return r, true
		}
	}
	return filter.Result{}, false
}

// SortedCards returns the filtered cards in sort order.
func (c *Collection) SortedCards() []string {
	c.sort()
	return c.sorted
}

// SortValueForCard returns the sort key and label of a filtered card.
func (c *Collection) SortValueForCard(id string) (SortValue, bool) {
	c.sort()
	v, ok := c.sortValues[id]
	return v, ok
}

func (c *Collection) paginate() {
	c.pageOnce.Do(func() {
		ids := c.SortedCards()
		if off := c.desc.Offset; off > 0 {
			ids = ids[min(off, len(ids)):]
		}
		if lim := c.desc.Limit; lim > 0 && lim < len(ids) {
			ids = ids[:lim]
		}
		c.paginated = ids

		labels := make([]string, len(ids))
		if c.sortLabels {
			for i, id := range ids {
				labels[i] = c.sortValues[id].Label
			}
		}
		c.rawLabels = labels
		c.labels = collapseLabels(labels)
	})
}

// collapseLabels blanks repeated consecutive labels. When every label is
// the same, all are blanked.
func collapseLabels(labels []string) []string {
	out := make([]string, len(labels))
	allSame := len(labels) > 0
	for i, l := range labels {
		if i > 0 && l != labels[0] {
			allSame = false
		}
		if i == 0 || l != labels[i-1] {
			out[i] = l
		}
	}
	if allSame {
		clear(out)
	}
	return out
}

// PaginatedCards returns SortedCards after offset and limit.
func (c *Collection) PaginatedCards() []string {
	c.paginate()
	return c.paginated
}

// Labels returns one label per paginated card.
func (c *Collection) Labels() []string {
	c.paginate()
	return c.labels
}

// NumCards counts the paginated cards, not including start cards.
func (c *Collection) NumCards() int {
	return len(c.PaginatedCards())
}

func (c *Collection) startCards() []string {
	return c.env.known(c.env.StartCards[c.desc.Serialize()])
}

// FinalSortedCards returns the configured start cards followed by the
// paginated cards. A card appears at most once.
func (c *Collection) FinalSortedCards() []string {
	start := c.startCards()
	out := slices.Clone(start)
	for _, id := range c.PaginatedCards() {
		if !slices.Contains(start, id) {
			out = append(out, id)
		}
	}
	return out
}

// FinalLabels matches FinalSortedCards; start cards are unlabeled. Runs
// are collapsed over the cards that remain after start cards move out.
func (c *Collection) FinalLabels() []string {
	start := c.startCards()
	c.paginate()
	var body []string
	for i, id := range c.paginated {
		if !slices.Contains(start, id) {
			body = append(body, c.rawLabels[i])
		}
	}
	return append(make([]string, len(start)), collapseLabels(body)...)
}

// CardsThatWillBeRemoved returns the cards filtered into this collection
// that the same description no longer selects under live.
func (c *Collection) CardsThatWillBeRemoved(live *Environment) []string {
	after := make(map[string]bool)
	for _, id := range New(c.desc, live).FilteredCards() {
		after[id] = true
	}
	var out []string
	for _, id := range c.FilteredCards() {
		if !after[id] {
			out = append(out, id)
		}
	}
	return out
}
