package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/text"
)

func refs(pairs ...string) models.ReferenceBlock {
	targets := make(map[string]map[models.ReferenceType]string)
	for i := 0; i+1 < len(pairs); i += 2 {
		if targets[pairs[i]] == nil {
			targets[pairs[i]] = make(map[models.ReferenceType]string)
		}
		targets[pairs[i]][models.ReferenceType(pairs[i+1])] = ""
	}
	return references.FromTargets(targets)
}

func fixture() *snapshot.Snapshot {
	b := snapshot.NewBuilder()
	b.Add(&models.Card{ID: "a", Type: models.CardTypeContent, Title: "Apple orchards", Author: "u1", Section: "s1",
		References: refs("b", "link")}, snapshot.Flags{Starred: true})
	b.Add(&models.Card{ID: "b", Type: models.CardTypeContent, Title: "Banana plantations", Slugs: []string{"bee"},
		Author: "u2", Collaborators: []string{"u1"}, Section: "s1", References: refs("c", "link")}, snapshot.Flags{Read: true})
	b.Add(&models.Card{ID: "c", Type: models.CardTypeContent, Title: "Cherry trees", Author: "u3", References: refs()}, snapshot.Flags{})
	b.Add(&models.Card{ID: "d", Type: models.CardTypeConcept, Title: "Gravity", References: refs()}, snapshot.Flags{})
	b.Add(&models.Card{ID: "e", Type: models.CardTypeContent, Title: "Falling apples", Body: "Gravity pulls apples down.",
		Author: "u3", References: refs("d", "concept")}, snapshot.Flags{})
	b.Add(&models.Card{ID: "f", Type: models.CardTypeContent, Title: "Orbits", Body: "Planets move because of gravity.",
		Author: "u3", References: refs()}, snapshot.Flags{})
	return b.Build()
}

func newEngine(snap *snapshot.Snapshot, opts Options) *Engine {
	corpus := text.NewCorpus(snap.Graph(), nil, text.Options{})
	return NewEngine(snap, corpus, NewParser(snapshot.DefaultInverseFilters), opts)
}

func matching(r Result, snap *snapshot.Snapshot) []string {
	universe := make(map[string]bool)
	for id := range snap.Cards {
		universe[id] = true
	}
	return r.MatchingIDs(universe)
}

func TestParser_Parse(t *testing.T) {
	p := NewParser(snapshot.DefaultInverseFilters)
	exprs := p.Parse([]string{
		"starred", "children", "a+b", "unread", "starred+read",
		"exclude", "descendants", "x", "2",
		"combine", "read", "cards", "a+b",
	})

	var got []string
	for _, x := range exprs {
		got = append(got, x.String())
	}
	require.Equal(t, []string{
		"starred", "children/a+b", "unread", "starred+read",
		"exclude/descendants/x/2", "combine/read/cards/a+b",
	}, got)

	require.IsType(t, Concrete{}, exprs[0])
	require.IsType(t, Configurable{}, exprs[1])
	require.Equal(t, Inverse{Name: "unread", Of: "read"}, exprs[2])
	require.Equal(t, Union{Names: []string{"starred", "read"}}, exprs[3])
	require.Len(t, exprs[5].(Configurable).Sub, 2)
}

func TestParser_FillsMissingArgsWithDefaults(t *testing.T) {
	p := NewParser(nil)
	require.Equal(t, "descendants/x/2", p.ParseString("descendants/x").String())
	require.Equal(t, "children/key-card", p.ParseString("children").String())
}

func TestParser_ParseUntilRespectsArity(t *testing.T) {
	p := NewParser(nil)
	stop := func(s string) bool { return s == "sort" }
	exprs, rest := p.ParseUntil([]string{"query", "sort", "starred", "sort", "updated"}, stop)
	require.Len(t, exprs, 2)
	require.Equal(t, "query/sort", exprs[0].String())
	require.Equal(t, 3, rest)
}

func TestEngine_LinkFilters(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{ActiveCard: "a"})

	tests := []struct {
		expr string
		want []string
	}{
		{"children/a", []string{"b"}},
		{"children/key-card", []string{"b"}},
		{"descendants/a/2", []string{"b", "c"}},
		{"descendants/a/0", []string{"b", "c"}},
		{"parents/bee", []string{"a"}},
		{"ancestors/c/0", []string{"a", "b"}},
		{"direct-connections/b", []string{"a", "c"}},
		{"direct-references-outbound/link/a", []string{"b"}},
		{"direct-references-inbound/link/b", []string{"a"}},
		{"references/link+concept/e/1", []string{"d"}},
		{"direct-references/ack/a", nil},
		{"children/nobody", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := e.EvaluateString(tt.expr)
			require.True(t, r.Known)
			require.Equal(t, tt.want, nilIfEmpty(matching(r, snap)))
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestEngine_LinkSortValues(t *testing.T) {
	e := newEngine(fixture(), Options{})

	r := e.EvaluateString("descendants/a/2")
	require.True(t, r.Ascending)
	v, ok := r.SortValue("c")
	require.True(t, ok)
	require.Equal(t, 2.0, v)

	r = e.EvaluateString("direct-connections/b")
	require.Equal(t, map[string]float64{"a": -1, "c": 1}, r.SortValues)
}

func TestEngine_ConcreteAndInverse(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})

	require.Equal(t, []string{"a"}, matching(e.EvaluateString("starred"), snap))
	require.Equal(t, []string{"b", "c", "d", "e", "f"}, matching(e.EvaluateString("unstarred"), snap))
	require.Equal(t, []string{"a", "b"}, matching(e.EvaluateString("starred+read"), snap))
	require.Equal(t, []string{"d"}, matching(e.EvaluateString("type-concept"), snap))
	require.Equal(t, []string{"a", "b"}, matching(e.EvaluateString("section-s1"), snap))
}

func TestEngine_UnknownNeverMatches(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})
	r := e.EvaluateString("no-such-filter")
	require.False(t, r.Known)
	require.Empty(t, matching(r, snap))
}

func TestEngine_Author(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{UserID: "u1"})
	require.Equal(t, []string{"a", "b"}, matching(e.EvaluateString("author/me"), snap))
	require.Equal(t, []string{"c", "e", "f"}, matching(e.EvaluateString("author/u3"), snap))
	require.Equal(t, []string{"b", "c", "e", "f"}, matching(e.EvaluateString("author/u2+u3"), snap))
}

func TestEngine_Cards(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{ActiveCard: "f"})
	r := e.EvaluateString("cards/c+bee+key-card+ghost")
	require.Equal(t, []string{"b", "c", "f"}, matching(r, snap))
	require.Equal(t, map[string]float64{"c": 0, "b": 1, "f": 2}, r.SortValues)
	require.True(t, r.Spec.SuppressLabels)
}

func TestEngine_Query(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})

	r := e.EvaluateString("query/gravity")
	require.Equal(t, []string{"d", "e", "f"}, matching(r, snap))
	require.False(t, r.Ascending)

	r = e.EvaluateString("query-strict/falling+apples")
	require.Equal(t, []string{"e"}, matching(r, snap))

	require.Empty(t, matching(e.EvaluateString("query/"), snap))
}

func TestEngine_Similar(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})

	r := e.EvaluateString("similar/e")
	require.True(t, r.Matches("f"))
	require.True(t, r.Matches("a"))
	require.False(t, r.Matches("e"), "key card is excluded")
	require.False(t, r.Matches("c"))
	require.False(t, r.Preview)

	cut := e.EvaluateString("similar-cutoff/e/1000")
	require.Empty(t, matching(cut, snap))
}

type recordingFetcher struct {
	requested []string
}

func (f *recordingFetcher) Request(id string) {
	f.requested = append(f.requested, id)
}

func TestEngine_SimilarPrefersPrecomputed(t *testing.T) {
	snap := fixture()
	snap.CardSimilarity = map[string]map[string]float64{"a": {"c": 0.9, "a": 1}}
	fetcher := &recordingFetcher{}
	e := newEngine(snap, Options{Fetcher: fetcher})

	r := e.EvaluateString("similar/a")
	require.Equal(t, []string{"c"}, matching(r, snap))
	require.False(t, r.Preview)
	require.Empty(t, fetcher.requested)

	r = e.EvaluateString("similar/e")
	require.True(t, r.Preview)
	require.Equal(t, []string{"e"}, fetcher.requested)
}

func TestEngine_Concepts(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})

	require.Equal(t, []string{"e"}, matching(e.EvaluateString("about-concept/d"), snap))
	require.Equal(t, []string{"e"}, matching(e.EvaluateString("about-concept/gravity"), snap))
	require.Equal(t, []string{"f"}, matching(e.EvaluateString("missing-concept/d"), snap))
	require.Empty(t, matching(e.EvaluateString("about-concept/nothing"), snap))
}

func TestEngine_Types(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{})
	require.Equal(t, []string{"d"}, matching(e.EvaluateString("same-type/d"), snap))
	require.Equal(t, []string{"a", "b", "c", "e", "f"}, matching(e.EvaluateString("different-type/d"), snap))
}

func TestEngine_Combinators(t *testing.T) {
	snap := fixture()
	e := newEngine(snap, Options{ActiveCard: "a"})

	require.Len(t, matching(e.EvaluateString("limit/3"), snap), 6)
	require.Equal(t, []string{"b", "c", "d", "e", "f"}, matching(e.EvaluateString("exclude/starred"), snap))
	require.Equal(t, []string{"a"}, matching(e.EvaluateString("exclude/unstarred"), snap))
	require.Equal(t, []string{"a", "b"}, matching(e.EvaluateString("combine/starred/read"), snap))

	r := e.EvaluateString("expand/starred/children/key-card")
	require.Equal(t, []string{"a", "b"}, matching(r, snap))
	require.Equal(t, map[string]float64{"a": 0, "b": 1}, r.SortValues)

	r = e.EvaluateString("expand/starred/descendants/key-card/0")
	require.Equal(t, []string{"a", "b", "c"}, matching(r, snap))
}

func TestEngine_MemoizesByExpression(t *testing.T) {
	e := newEngine(fixture(), Options{})
	e.EvaluateString("descendants/a/2")
	e.EvaluateString("descendants/a/2")
	hits, _ := e.CacheStats()
	require.Equal(t, uint64(1), hits)
}

func TestDecodeText(t *testing.T) {
	require.Equal(t, "quantum gravity", DecodeText("quantum+gravity"))
	require.Equal(t, "c++ / go", DecodeText(EncodeText("c++ / go")))
	require.Equal(t, "100%", DecodeText("100%"))
}
