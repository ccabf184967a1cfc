package cardservice

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/cardweb/internal/apperr"
	"github.com/starford/cardweb/internal/checksum"
	"github.com/starford/cardweb/internal/collection"
	"github.com/starford/cardweb/internal/description"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/parser"
	"github.com/starford/cardweb/internal/references"
	"github.com/starford/cardweb/internal/snapshot"
	"github.com/starford/cardweb/internal/storage"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a lowercase ULID. Monotonic entropy is not safe for
// concurrent use, hence the lock.
func newID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(now), entropy).String())
}

// NewCard is the input for CreateCard.
type NewCard struct {
	Type      models.CardType `json:"type"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Section   string          `json:"section"`
	Tags      []string        `json:"tags"`
	Slugs     []string        `json:"slugs"`
	Synonyms  []string        `json:"synonyms"`
	Published bool            `json:"published"`
}

// ReferenceEdit sets or removes one reference.
type ReferenceEdit struct {
	Target string               `json:"target"`
	Type   models.ReferenceType `json:"type"`
	Value  string               `json:"value,omitempty"`
	Remove bool                 `json:"remove,omitempty"`
}

// ReferenceUpdate reports the result of SetReferences.
type ReferenceUpdate struct {
	CardID     string          `json:"card_id"`
	Diff       references.Diff `json:"diff"`
	Generation uint64          `json:"generation"`
}

// CreateCard writes a new card file with a fresh id, indexes it and
// publishes a new snapshot.
func (s *Service) CreateCard(_ context.Context, in NewCard) (*models.Card, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("cardservice: create: title is required: %w", apperr.ErrRejected)
	}
	typ := in.Type
	if typ == "" {
		typ = models.CardTypeContent
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("cardservice: create: unknown card type %q: %w", typ, apperr.ErrRejected)
	}

	now := time.Now().UTC().Truncate(time.Second)
	card := &models.Card{
		ID:         newID(now),
		Type:       typ,
		Slugs:      in.Slugs,
		Title:      in.Title,
		Body:       in.Body,
		Section:    in.Section,
		Tags:       in.Tags,
		Synonyms:   in.Synonyms,
		Author:     s.opts.UserID,
		Published:  in.Published,
		References: references.FromTargets(nil),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	path := storage.CardPath(card.ID)
	if s.store.Exists(path) {
		return nil, fmt.Errorf("cardservice: create %s: %w", path, apperr.ErrAlreadyExists)
	}

	data, err := parser.Render(card, parser.Flags{})
	if err != nil {
		return nil, fmt.Errorf("cardservice: render: %w", err)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	// Index what a later sync would see, so wikilinks and inline tags
	// in the body become references and tags now.
	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	indexed, flags := parser.ToCard(card.ID, parsed)
	row := index.CardRow{Path: path, Checksum: checksum.Sum(data), Flags: snapshot.Flags(flags), UpdatedAt: now}
	if err := s.db.UpsertCard(row, indexed); err != nil {
		return nil, err
	}
	if _, err := s.Rebuild(); err != nil {
		return nil, err
	}
	s.opts.Logger.Info("cardservice: card created", slog.String("id", card.ID), slog.String("path", path))
	return indexed, nil
}

// applyEdits returns a copy of card with edits applied, validated against snap.
func applyEdits(snap *snapshot.Snapshot, card *models.Card, edits []ReferenceEdit) (*models.Card, error) {
	lookup := references.MapLookup(snap.Cards)
	next := card
	for _, e := range edits {
		if e.Remove {
			next = references.Remove(next, e.Target, e.Type)
			continue
		}
		target := e.Target
		if id, ok := snap.Resolve(target); ok {
			target = id
		}
		var err error
		next, err = references.Set(next, lookup, target, e.Type, e.Value)
		if err != nil {
			return nil, err
		}
	}
	return next, nil
}

// SetReferences validates and applies reference edits to one card, writes
// the card file, patches the stored references and publishes a new snapshot.
func (s *Service) SetReferences(_ context.Context, idOrSlug string, edits []ReferenceEdit) (*ReferenceUpdate, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.snaps.Stable()
	card, err := resolve(snap, idOrSlug)
	if err != nil {
		return nil, err
	}
	next, err := applyEdits(snap, card, edits)
	if err != nil {
		s.recordEdit("rejected")
		return nil, err
	}

	diff := references.DiffBlocks(card.References, next.References)
	if diff.Empty() {
		s.recordEdit("noop")
		return &ReferenceUpdate{CardID: card.ID, Diff: diff, Generation: snap.Generation}, nil
	}

	_, flags, err := s.db.GetCard(card.ID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	data, err := parser.Render(next, parser.Flags(flags))
	if err != nil {
		return nil, fmt.Errorf("cardservice: render: %w", err)
	}
	path := card.Path
	if path == "" {
		path = storage.CardPath(card.ID)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := s.db.ApplyReferencesDiff(card.ID, diff); err != nil {
		return nil, err
	}
	published, err := s.Rebuild()
	if err != nil {
		return nil, err
	}
	s.recordEdit("applied")
	s.opts.Logger.Info("cardservice: references updated",
		slog.String("id", card.ID),
		slog.Int("additions", len(diff.Additions)),
		slog.Int("removed_targets", len(diff.CardDeletions)))
	return &ReferenceUpdate{CardID: card.ID, Diff: diff, Generation: published.Generation}, nil
}

// PreviewRemoval reports which cards of the collection at path would drop
// out if edits were applied. Nothing is persisted.
func (s *Service) PreviewRemoval(_ context.Context, idOrSlug, path string, edits []ReferenceEdit) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stable := s.snaps.Stable()
	card, err := resolve(stable, idOrSlug)
	if err != nil {
		return nil, err
	}
	next, err := applyEdits(stable, card, edits)
	if err != nil {
		return nil, err
	}

	live := s.snaps.Edit(next)
	defer s.snaps.Discard()

	desc := description.Deserialize(strings.TrimPrefix(path, "/"))
	col := collection.New(desc, s.environment(stable, ""))
	removed := col.CardsThatWillBeRemoved(s.environment(live, ""))
	if removed == nil {
		removed = []string{}
	}
	return removed, nil
}

func (s *Service) recordEdit(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordReferenceEdit(outcome)
	}
}
