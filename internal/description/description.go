// Package description parses and serializes collection descriptions: the
// path strings naming a base set, filters, a sort and a view mode.
package description

import (
	"slices"
	"strconv"
	"strings"

	"github.com/starford/cardweb/internal/filter"
)

// Path keywords.
const (
	KeywordSort    = "sort"
	KeywordReverse = "reverse"
	KeywordView    = "view"
)

// Defaults omitted from the canonical form.
const (
	DefaultSet  = "main"
	DefaultSort = "default"
	DefaultView = "list"
)

// Sets are the base set names recognized as a leading segment.
var Sets = []string{"main", "everything", "reading-list"}

// Sorts are the recognized sort names.
var Sorts = []string{"default", "updated", "created", "title", "random", "link-count", "rank", "word-count"}

// ViewModes are the recognized view modes.
var ViewModes = []string{"list", "web"}

// Description names a collection. Construct it with New or Deserialize;
// Limit and Offset are derived from the filters.
type Description struct {
	Set           string   `json:"set"`
	Filters       []string `json:"filters"`
	Sort          string   `json:"sort"`
	SortReversed  bool     `json:"sort_reversed"`
	ViewMode      string   `json:"view_mode"`
	ViewModeExtra string   `json:"view_mode_extra,omitempty"`
	Limit         int      `json:"limit"`
	Offset        int      `json:"offset"`
}

// New builds a description, normalizing unknown names to defaults.
func New(set string, filters []string, sort string, reversed bool, view, viewExtra string) Description {
	if !slices.Contains(Sets, set) {
		set = DefaultSet
	}
	if !slices.Contains(Sorts, sort) {
		sort = DefaultSort
	}
	if !slices.Contains(ViewModes, view) {
		view, viewExtra = DefaultView, ""
	}
	d := Description{
		Set:           set,
		Filters:       slices.Clone(filters),
		Sort:          sort,
		SortReversed:  reversed,
		ViewMode:      view,
		ViewModeExtra: viewExtra,
	}
	d.Limit, d.Offset = pagination(d.Filters)
	return d
}

// pagination reads the first limit/ and offset/ filters. Malformed or
// negative values count as 0.
func pagination(filters []string) (limit, offset int) {
	limitSeen, offsetSeen := false, false
	for _, f := range filters {
		name, arg, _ := strings.Cut(f, "/")
		switch {
		case name == "limit" && !limitSeen:
			limit, limitSeen = nonNegative(arg), true
		case name == "offset" && !offsetSeen:
			offset, offsetSeen = nonNegative(arg), true
		}
	}
	return limit, offset
}

func nonNegative(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var pathParser = filter.NewParser(nil)

func isKeyword(seg string) bool {
	return seg == KeywordSort || seg == KeywordView
}

// Deserialize parses a description path. The whole path is treated as
// description; use DeserializeWithExtra for paths ending in a card selector.
func Deserialize(path string) Description {
	return parse(strings.Split(strings.Trim(path, "/"), "/"))
}

// DeserializeWithExtra parses a path whose last segment, when not
// followed by a slash, selects a card. The selector is returned separately.
func DeserializeWithExtra(path string) (Description, string) {
	path = strings.TrimPrefix(path, "/")
	segs := strings.Split(path, "/")
	extra := segs[len(segs)-1]
	return parse(segs[:len(segs)-1]), extra
}

func parse(segs []string) Description {
	set := DefaultSet
	if len(segs) > 0 && slices.Contains(Sets, segs[0]) {
		set, segs = segs[0], segs[1:]
	}

	sort, reversed := DefaultSort, false
	view, viewExtra := DefaultView, ""
	var filters []string
	for len(segs) > 0 {
		exprs, n := pathParser.ParseUntil(segs, isKeyword)
		for _, x := range exprs {
			filters = append(filters, x.String())
		}
		segs = segs[n:]
		if len(segs) == 0 {
			break
		}
		switch segs[0] {
		case KeywordSort:
			segs = segs[1:]
			if len(segs) > 0 && segs[0] == KeywordReverse {
				reversed, segs = true, segs[1:]
			}
			if len(segs) > 0 {
				sort, segs = segs[0], segs[1:]
			}
		case KeywordView:
			segs = segs[1:]
			if len(segs) > 0 {
				view, segs = segs[0], segs[1:]
			}
			if view == "web" && len(segs) > 0 && segs[0] != "" && !isKeyword(segs[0]) {
				viewExtra, segs = segs[0], segs[1:]
			}
		}
	}
	return New(set, filters, sort, reversed, view, viewExtra)
}

// Serialize returns the canonical path: filters sorted, defaults
// omitted, every segment followed by a slash.
func (d Description) Serialize() string {
	filters := slices.Clone(d.Filters)
	slices.Sort(filters)
	return d.serialize(filters, true)
}

// SerializeOriginalOrder is Serialize with filters in input order.
func (d Description) SerializeOriginalOrder() string {
	return d.serialize(d.Filters, true)
}

// SerializeShort identifies the card list regardless of presentation:
// the canonical form without the view block and pagination filters.
func (d Description) SerializeShort() string {
	filters := make([]string, 0, len(d.Filters))
	for _, f := range d.Filters {
		name, _, _ := strings.Cut(f, "/")
		if name == "limit" || name == "offset" {
			continue
		}
		filters = append(filters, f)
	}
	slices.Sort(filters)
	return d.serialize(filters, false)
}

func (d Description) serialize(filters []string, withView bool) string {
	var b strings.Builder
	seg := func(s string) {
		b.WriteString(s)
		b.WriteByte('/')
	}
	set := d.Set
	if set == "" {
		set = DefaultSet
	}
	// A leading filter named like a base set would re-parse as the set.
	if set != DefaultSet || (len(filters) > 0 && slices.Contains(Sets, filters[0])) {
		seg(set)
	}
	for _, f := range filters {
		seg(f)
	}
	if (d.Sort != DefaultSort && d.Sort != "") || d.SortReversed {
		seg(KeywordSort)
		if d.SortReversed {
			seg(KeywordReverse)
		}
		sort := d.Sort
		if sort == "" {
			sort = DefaultSort
		}
		seg(sort)
	}
	if withView && d.ViewMode != DefaultView && d.ViewMode != "" {
		seg(KeywordView)
		seg(d.ViewMode)
		if d.ViewModeExtra != "" {
			seg(d.ViewModeExtra)
		}
	}
	return b.String()
}

// Equivalent reports whether two descriptions have the same canonical form.
func (d Description) Equivalent(other Description) bool {
	return d.Serialize() == other.Serialize()
}

// String returns the canonical form.
func (d Description) String() string {
	return d.Serialize()
}
