package cardservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/collection"
	"github.com/starford/cardweb/internal/description"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/text"
)

// CardSummary is a card as listed inside a collection.
type CardSummary struct {
	ID      string          `json:"id"`
	Type    models.CardType `json:"type"`
	Title   string          `json:"title"`
	Section string          `json:"section,omitempty"`
	Tags    []string        `json:"tags"`
	Label   string          `json:"label,omitempty"`
}

// CollectionView is the evaluated form of a collection description.
type CollectionView struct {
	Description  string              `json:"description"`
	Short        string              `json:"short"`
	Generation   uint64              `json:"generation"`
	Cards        []CardSummary       `json:"cards"`
	Total        int                 `json:"total"`
	Fallback     bool                `json:"fallback"`
	Preview      bool                `json:"preview"`
	SelectedCard string              `json:"selected_card,omitempty"`
	Web          *collection.WebInfo `json:"web,omitempty"`
}

// RankedCard is one row of the PageRank listing.
type RankedCard struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Rank  float64 `json:"rank"`
}

// SimilarCard is one row of the similarity listing.
type SimilarCard struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// CardDetail is a card together with its user flags.
type CardDetail struct {
	*models.Card
	Starred     bool `json:"starred"`
	Read        bool `json:"read"`
	ReadingList bool `json:"reading_list"`
	WordCount   int  `json:"word_count"`
}

// splitSelector separates a trailing card selector from a collection path.
// Paths ending in "/" carry no selector.
func splitSelector(path string) (description.Description, string) {
	path = strings.TrimPrefix(path, "/")
	if path == "" || strings.HasSuffix(path, "/") {
		return description.Deserialize(path), ""
	}
	return description.DeserializeWithExtra(path)
}

// Evaluate parses a collection path and evaluates it against the stable
// snapshot. activeCard, when set, overrides a selector in the path.
func (s *Service) Evaluate(_ context.Context, path, activeCard string) (*CollectionView, error) {
	start := time.Now()
	desc, selector := splitSelector(path)
	snap := s.snaps.Stable()

	if activeCard == "" {
		activeCard = selector
	}
	if activeCard != "" {
		if id, ok := snap.Resolve(activeCard); ok {
			activeCard = id
		}
	}

	env := s.environment(snap, activeCard)
	col := collection.New(desc, env)

	ids := col.FinalSortedCards()
	labels := col.FinalLabels()
	view := &CollectionView{
		Description:  desc.Serialize(),
		Short:        desc.SerializeShort(),
		Generation:   snap.Generation,
		Cards:        make([]CardSummary, 0, len(ids)),
		Total:        col.NumCards(),
		Fallback:     col.IsFallback(),
		Preview:      col.Preview(),
		SelectedCard: activeCard,
		Web:          col.WebInfo(),
	}
	for i, id := range ids {
		c := snap.Cards[id]
		sum := summarize(c)
		if i < len(labels) {
			sum.Label = labels[i]
		}
		view.Cards = append(view.Cards, sum)
	}

	if m := s.opts.Metrics; m != nil {
		m.RecordEvaluation(desc.Set, view.Fallback, time.Since(start))
		m.RecordFilterCache(env.Engine.CacheStats())
	}
	s.opts.Logger.Debug("cardservice: collection evaluated",
		slog.String("description", view.Description),
		slog.Int("total", view.Total),
		slog.Duration("took", time.Since(start)))
	return view, nil
}

func summarize(c *models.Card) CardSummary {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return CardSummary{ID: c.ID, Type: c.Type, Title: c.Title, Section: c.Section, Tags: tags}
}

// resolve maps an id or slug to a card of snap.
func resolve(snap *snapshot.Snapshot, idOrSlug string) (*models.Card, error) {
	id, ok := snap.Resolve(idOrSlug)
	if !ok {
		return nil, fmt.Errorf("cardservice: card %q: %w", idOrSlug, apperr.ErrNotFound)
	}
	return snap.Cards[id], nil
}

// GetCard returns one card from the stable snapshot.
func (s *Service) GetCard(_ context.Context, idOrSlug string) (*CardDetail, error) {
	snap := s.snaps.Stable()
	c, err := resolve(snap, idOrSlug)
	if err != nil {
		return nil, err
	}
	detail := &CardDetail{
		Card:        c,
		Starred:     snap.Filters[snapshot.FilterStarred][c.ID],
		Read:        snap.Filters[snapshot.FilterRead][c.ID],
		ReadingList: snap.Filters[snapshot.FilterInReadingList][c.ID],
	}
	if ct, ok := s.corpus(snap).Text(c.ID); ok {
		detail.WordCount = ct.WordCount()
	}
	return detail, nil
}

// Similar lists the cards whose fingerprints overlap the given card's,
// best first. limit <= 0 returns every match.
func (s *Service) Similar(_ context.Context, idOrSlug string, limit int) ([]SimilarCard, error) {
	snap := s.snaps.Stable()
	c, err := resolve(snap, idOrSlug)
	if err != nil {
		return nil, err
	}
	corpus := s.corpus(snap)
	scored := text.ClosestOverlappingItems(corpus.Fingerprint(c.ID), corpus.Fingerprints())
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]SimilarCard, 0, len(scored))
	for _, sc := range scored {
		out = append(out, SimilarCard{ID: sc.CardID, Title: snap.Cards[sc.CardID].Title, Score: sc.Score})
	}
	return out, nil
}

// Suggestions lists concepts the card's text mentions without referencing them.
func (s *Service) Suggestions(_ context.Context, idOrSlug string) ([]text.ConceptSuggestion, error) {
	snap := s.snaps.Stable()
	c, err := resolve(snap, idOrSlug)
	if err != nil {
		return nil, err
	}
	out := s.corpus(snap).SuggestConcepts(c.ID)
	if out == nil {
		out = []text.ConceptSuggestion{}
	}
	return out, nil
}

// Rank lists cards by PageRank, highest first.
func (s *Service) Rank(_ context.Context, limit int) ([]RankedCard, error) {
	snap := s.snaps.Stable()
	ranks := s.ranker.Rank(snap.Generation, snap.Graph())
	out := make([]RankedCard, 0, len(ranks))
	for id, r := range ranks {
		out = append(out, RankedCard{ID: id, Title: snap.Cards[id].Title, Rank: r})
	}
	slices.SortFunc(out, func(a, b RankedCard) int {
		switch {
		case a.Rank > b.Rank:
			return -1
		case a.Rank < b.Rank:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns the stored references pointing at a card.
func (s *Service) Backlinks(_ context.Context, idOrSlug string) ([]index.ReferenceRow, error) {
	id := idOrSlug
	if resolved, ok := s.snaps.Stable().Resolve(idOrSlug); ok {
		id = resolved
	}
	rows, err := s.db.Inbound(id)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []index.ReferenceRow{}
	}
	return rows, nil
}
