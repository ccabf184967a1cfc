package filter

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/cardweb/internal/graph"
	"github.com/starford/cardweb/internal/memo"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/text"
)

// SimilarityFetcher starts an out-of-process similarity computation for
// a card. Request must not block; the caller re-evaluates once the
// snapshot carries the fetched scores.
type SimilarityFetcher interface {
	Request(cardID string)
}

// Options tunes an Engine.
type Options struct {
	// UserID replaces the "me" author placeholder.
	UserID string
	// ActiveCard replaces the "key-card" placeholder.
	ActiveCard string
	MemoSize   int
	Fetcher    SimilarityFetcher
}

// Engine evaluates expressions against one snapshot. Results are
// memoized by expression string.
type Engine struct {
	snap     *snapshot.Snapshot
	corpus   *text.Corpus
	parser   *Parser
	opts     Options
	universe map[string]bool
	cache    *memo.Cache[string, Result]
}

// NewEngine creates an engine over snap. corpus must be built from the
// same snapshot.
func NewEngine(snap *snapshot.Snapshot, corpus *text.Corpus, parser *Parser, opts Options) *Engine {
	universe := make(map[string]bool, len(snap.Cards))
	for id := range snap.Cards {
		universe[id] = true
	}
	return &Engine{
		snap:     snap,
		corpus:   corpus,
		parser:   parser,
		opts:     opts,
		universe: universe,
		cache:    memo.New[string, Result](opts.MemoSize),
	}
}

// Parser returns the parser the engine was built with.
func (e *Engine) Parser() *Parser {
	return e.parser
}

// Snapshot returns the snapshot being evaluated.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.snap
}

// CacheStats returns the result cache hit and miss counters.
func (e *Engine) CacheStats() (hits, misses uint64) {
	return e.cache.Stats()
}

// EvaluateString parses and evaluates one expression.
func (e *Engine) EvaluateString(s string) Result {
	return e.Evaluate(e.parser.ParseString(s))
}

// Evaluate returns the result of x.
func (e *Engine) Evaluate(x Expr) Result {
	return e.cache.Do(x.String(), func() Result {
		return e.eval(x)
	})
}

func (e *Engine) eval(x Expr) Result {
	switch x := x.(type) {
	case Concrete:
		return e.concrete(x.Name)
	case Inverse:
		r := e.concrete(x.Of)
		if !r.Known {
			return nothing()
		}
		r.Inverted = true
		return r
	case Union:
		var parts []Result
		for _, name := range x.Names {
			parts = append(parts, e.Evaluate(e.parser.ParseString(name)))
		}
		return e.union(parts...)
	case Configurable:
		r := e.configurable(x)
		r.Known = true
		spec := x.Spec
		r.Spec = &spec
		return r
	}
	return nothing()
}

func (e *Engine) concrete(name string) Result {
	if set, ok := e.snap.Filters[name]; ok {
		return Result{Members: set, Known: true}
	}
	if ids, ok := e.snap.Sets[name]; ok {
		return Result{Members: members(ids...), Known: true}
	}
	return nothing()
}

func (e *Engine) configurable(c Configurable) Result {
	switch c.Spec.Kind {
	case KindChildren, KindDescendants, KindParents, KindAncestors,
		KindDirectConnections, KindConnections,
		KindDirectReferences, KindReferences,
		KindDirectReferencesInbound, KindReferencesInbound,
		KindDirectReferencesOutbound, KindReferencesOutbound:
		return e.link(c)
	case KindAuthor:
		return e.author(c.Arg(0))
	case KindCards:
		return e.cards(c.Arg(0))
	case KindQuery:
		return e.query(c.Arg(0), false)
	case KindQueryStrict:
		return e.query(c.Arg(0), true)
	case KindSimilar:
		return e.similar(c.Arg(0), 0)
	case KindSimilarCutoff:
		return e.similar(c.Arg(0), parseFloat(c.Arg(1), 1))
	case KindAboutConcept:
		return e.aboutConcept(c.Arg(0), false)
	case KindMissingConcept:
		return e.aboutConcept(c.Arg(0), true)
	case KindSameType:
		return e.sameType(c.Arg(0), true)
	case KindDifferentType:
		return e.sameType(c.Arg(0), false)
	case KindLimit, KindOffset:
		return everything()
	case KindExclude:
		r := e.Evaluate(c.Sub[0])
		return Result{Members: r.Members, Inverted: !r.Inverted, Preview: r.Preview}
	case KindCombine:
		return e.union(e.Evaluate(c.Sub[0]), e.Evaluate(c.Sub[1]))
	case KindExpand:
		return e.expand(c)
	}
	return nothing()
}

type linkShape struct {
	dir    graph.Direction
	typed  bool
	direct bool
}

var linkShapes = map[Kind]linkShape{
	KindChildren:                 {dir: graph.Outbound, direct: true},
	KindDescendants:              {dir: graph.Outbound},
	KindParents:                  {dir: graph.Inbound, direct: true},
	KindAncestors:                {dir: graph.Inbound},
	KindDirectConnections:        {dir: graph.Both, direct: true},
	KindConnections:              {dir: graph.Both},
	KindDirectReferences:         {dir: graph.Both, typed: true, direct: true},
	KindReferences:               {dir: graph.Both, typed: true},
	KindDirectReferencesInbound:  {dir: graph.Inbound, typed: true, direct: true},
	KindReferencesInbound:        {dir: graph.Inbound, typed: true},
	KindDirectReferencesOutbound: {dir: graph.Outbound, typed: true, direct: true},
	KindReferencesOutbound:       {dir: graph.Outbound, typed: true},
}

// cardArgIndex returns which argument of c names the start cards.
func cardArgIndex(c Configurable) (int, bool) {
	if shape, ok := linkShapes[c.Spec.Kind]; ok {
		if shape.typed {
			return 1, true
		}
		return 0, true
	}
	if c.Spec.Kind == KindSimilarCutoff {
		return 0, true
	}
	return 0, false
}

func (e *Engine) link(c Configurable) Result {
	shape := linkShapes[c.Spec.Kind]
	arg := 0
	var types []models.ReferenceType
	if shape.typed {
		types = parseTypes(c.Arg(0))
		if len(types) == 0 {
			return nothing()
		}
		arg = 1
	}
	starts := e.resolveCards(c.Arg(arg))
	if len(starts) == 0 {
		return nothing()
	}
	ply := 1
	if !shape.direct {
		ply = parsePly(c.Arg(arg + 1))
	}

	var dist map[string]int
	if shape.dir == graph.Both && !shape.typed {
		dist = graph.TwoWayBFS(e.snap.Graph(), starts, ply, false, nil)
	} else {
		dist = graph.BoundedBFS(e.snap.Graph(), starts, shape.dir, ply, false, types)
	}
	r := Result{Members: make(map[string]bool, len(dist)), SortValues: make(map[string]float64, len(dist)), Ascending: true}
	for id, d := range dist {
		r.Members[id] = true
		r.SortValues[id] = float64(d)
	}
	return r
}

func (e *Engine) expand(c Configurable) Result {
	base := e.Evaluate(c.Sub[0])
	baseIDs := base.MatchingIDs(e.universe)
	second, ok := c.Sub[1].(Configurable)
	idx, linkLike := cardArgIndex(second)
	if !ok || !linkLike || len(baseIDs) == 0 {
		return base
	}
	second.Args = slices.Clone(second.Args)
	second.Args[idx] = strings.Join(baseIDs, UnionSeparator)
	reached := e.eval(second)

	r := Result{
		Members:    members(baseIDs...),
		SortValues: make(map[string]float64, len(baseIDs)+len(reached.Members)),
		Ascending:  reached.Ascending,
		Preview:    base.Preview || reached.Preview,
	}
	for _, id := range baseIDs {
		r.SortValues[id] = 0
	}
	for id := range reached.Members {
		if r.Members[id] {
			continue
		}
		r.Members[id] = true
		r.SortValues[id] = reached.SortValues[id]
	}
	return r
}

func (e *Engine) union(parts ...Result) Result {
	r := Result{Members: make(map[string]bool), SortValues: make(map[string]float64)}
	for _, p := range parts {
		if p.Known {
			r.Known = true
		}
		r.Preview = r.Preview || p.Preview
		for _, id := range p.MatchingIDs(e.universe) {
			r.Members[id] = true
			if v, ok := p.SortValues[id]; ok {
				if _, seen := r.SortValues[id]; !seen {
					r.SortValues[id] = v
				}
			}
		}
		if p.HasSortValues() && !r.Ascending {
			r.Ascending = p.Ascending
		}
	}
	return r
}

func (e *Engine) author(arg string) Result {
	wanted := make(map[string]bool)
	for _, id := range strings.Split(arg, UnionSeparator) {
		if id == Me {
			id = e.opts.UserID
		}
		if id != "" {
			wanted[id] = true
		}
	}
	r := Result{Members: make(map[string]bool)}
	for id, c := range e.snap.Cards {
		if wanted[c.Author] {
			r.Members[id] = true
			continue
		}
		for _, collab := range c.Collaborators {
			if wanted[collab] {
				r.Members[id] = true
				break
			}
		}
	}
	return r
}

func (e *Engine) cards(arg string) Result {
	ids := e.resolveCards(arg)
	r := Result{Members: members(ids...), SortValues: make(map[string]float64, len(ids)), Ascending: true}
	for i, id := range ids {
		r.SortValues[id] = float64(i)
	}
	return r
}

func (e *Engine) query(arg string, strict bool) Result {
	pq := e.corpus.PrepareQuery(DecodeText(arg))
	if pq.Empty() {
		return nothing()
	}
	r := Result{Members: make(map[string]bool), SortValues: make(map[string]float64)}
	for id := range e.snap.Cards {
		score, full := e.corpus.Score(pq, id)
		if score <= 0 || (strict && !full) {
			continue
		}
		r.Members[id] = true
		r.SortValues[id] = score
	}
	return r
}

func (e *Engine) similar(arg string, cutoff float64) Result {
	keys := e.resolveCards(arg)
	if len(keys) == 0 {
		return nothing()
	}
	scores, preview := e.similarity(keys)
	exclude := members(keys...)
	r := Result{Members: make(map[string]bool), SortValues: make(map[string]float64), Preview: preview}
	for id, score := range scores {
		if exclude[id] || score <= 0 || score < cutoff || !e.universe[id] {
			continue
		}
		r.Members[id] = true
		r.SortValues[id] = score
	}
	return r
}

// similarity prefers scores precomputed on the snapshot. Without them it
// computes fingerprint overlap locally and, if a fetcher is configured,
// asks for the precomputed version and marks the result as a preview.
func (e *Engine) similarity(keys []string) (map[string]float64, bool) {
	if len(keys) == 1 {
		if pre, ok := e.snap.CardSimilarity[keys[0]]; ok {
			return pre, false
		}
	}
	preview := false
	if e.opts.Fetcher != nil && len(keys) == 1 {
		e.opts.Fetcher.Request(keys[0])
		preview = true
	}
	fp := e.corpus.FingerprintForCards(keys)
	scored := text.ClosestOverlappingItems(fp, e.corpus.Fingerprints())
	out := make(map[string]float64, len(scored))
	for _, s := range scored {
		out[s.CardID] = s.Score
	}
	return out, preview
}

// conceptGroup returns the concept named by arg together with every
// concept linked to it by synonym references.
func (e *Engine) conceptGroup(arg string) map[string]bool {
	var id string
	if arg == KeyCard {
		arg = e.opts.ActiveCard
	}
	if resolved, ok := e.snap.Resolve(arg); ok && e.snap.Cards[resolved].Type == models.CardTypeConcept {
		id = resolved
	} else if found, ok := e.corpus.ConceptFor(DecodeText(arg)); ok {
		id = found
	}
	if id == "" {
		return nil
	}
	group := graph.BoundedBFS(e.snap.Graph(), []string{id}, graph.Both, 0, true, []models.ReferenceType{references.Synonym})
	out := make(map[string]bool, len(group))
	for cid := range group {
		out[cid] = true
	}
	return out
}

func (e *Engine) aboutConcept(arg string, missing bool) Result {
	group := e.conceptGroup(arg)
	if len(group) == 0 {
		return nothing()
	}
	r := Result{Members: make(map[string]bool)}
	for id, c := range e.snap.Cards {
		if group[id] {
			continue
		}
		if !missing {
			if referencesConcept(c, group) {
				r.Members[id] = true
			}
			continue
		}
		for _, s := range e.corpus.SuggestConcepts(id) {
			if group[s.ConceptID] {
				r.Members[id] = true
				break
			}
		}
	}
	return r
}

func referencesConcept(c *models.Card, group map[string]bool) bool {
	for target, types := range c.References.Targets {
		if !group[target] {
			continue
		}
		for typ := range types {
			if references.IsConceptClass(typ) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) sameType(arg string, same bool) Result {
	ids := e.resolveCards(arg)
	if len(ids) == 0 {
		return nothing()
	}
	want := e.snap.Cards[ids[0]].Type
	r := Result{Members: make(map[string]bool)}
	for id, c := range e.snap.Cards {
		if (c.Type == want) == same {
			r.Members[id] = true
		}
	}
	return r
}

// resolveCards expands a "+" list of ids, slugs and the key-card
// placeholder into known card ids, keeping first-seen order.
func (e *Engine) resolveCards(arg string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(arg, UnionSeparator) {
		if part == KeyCard {
			part = e.opts.ActiveCard
		}
		if part == "" {
			continue
		}
		id, ok := e.snap.Resolve(part)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DecodeText turns a path argument back into free text: "+" is a space
// and %xx escapes are undone.
func DecodeText(arg string) string {
	if unescaped, err := url.QueryUnescape(arg); err == nil {
		return unescaped
	}
	return strings.ReplaceAll(arg, "+", " ")
}

// EncodeText is the inverse of DecodeText.
func EncodeText(s string) string {
	return url.QueryEscape(strings.Join(strings.Fields(s), " "))
}

func parseTypes(arg string) []models.ReferenceType {
	var out []models.ReferenceType
	for _, name := range strings.Split(arg, UnionSeparator) {
		t := models.ReferenceType(name)
		if references.Known(t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// parsePly reads a traversal depth. Malformed or negative values clamp to 1.
func parsePly(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 1
	}
	return n
}

func parseFloat(arg string, def float64) float64 {
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
