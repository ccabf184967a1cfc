package api

import (
	"context"

	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/models"
	"github.com/starford/cardweb/internal/text"
)

// CardService is the domain surface the handlers depend on.
type CardService interface {
	Evaluate(ctx context.Context, path, activeCard string) (*cardservice.CollectionView, error)
	GetCard(ctx context.Context, idOrSlug string) (*cardservice.CardDetail, error)
	Similar(ctx context.Context, idOrSlug string, limit int) ([]cardservice.SimilarCard, error)
	Suggestions(ctx context.Context, idOrSlug string) ([]text.ConceptSuggestion, error)
	Backlinks(ctx context.Context, idOrSlug string) ([]index.ReferenceRow, error)
	SetReferences(ctx context.Context, idOrSlug string, edits []cardservice.ReferenceEdit) (*cardservice.ReferenceUpdate, error)
	PreviewRemoval(ctx context.Context, idOrSlug, path string, edits []cardservice.ReferenceEdit) ([]string, error)
	CreateCard(ctx context.Context, in cardservice.NewCard) (*models.Card, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Rank(ctx context.Context, limit int) ([]cardservice.RankedCard, error)
}

var _ CardService = (*cardservice.Service)(nil)
