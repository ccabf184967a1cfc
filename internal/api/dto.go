package api

import (
	"github.com/starford/cardweb/internal/cardservice"
	"github.com/starford/cardweb/internal/index"
	"github.com/starford/cardweb/internal/text"
)

// CreateCardRequest is the request body for creating a card.
type CreateCardRequest = cardservice.NewCard

// SetReferencesRequest is the request body for PUT /cards/{id}/references.
type SetReferencesRequest struct {
	Edits []cardservice.ReferenceEdit `json:"edits" validate:"required"`
}

// PreviewRemovalRequest asks which cards of a collection an edit would drop.
type PreviewRemovalRequest struct {
	Collection string                      `json:"collection" example:"everything/children/key-card/" validate:"required"`
	Edits      []cardservice.ReferenceEdit `json:"edits" validate:"required"`
}

// PreviewRemovalResponse lists the cards that would leave the collection.
type PreviewRemovalResponse struct {
	Removed []string `json:"removed" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// SimilarResponse wraps similarity results.
type SimilarResponse struct {
	Cards []cardservice.SimilarCard `json:"cards" validate:"required"`
}

// SuggestionsResponse wraps concept suggestions.
type SuggestionsResponse struct {
	Suggestions []text.ConceptSuggestion `json:"suggestions" validate:"required"`
}

// BacklinksResponse wraps the references pointing at a card.
type BacklinksResponse struct {
	References []index.ReferenceRow `json:"references" validate:"required"`
}

// RankResponse wraps the PageRank listing.
type RankResponse struct {
	Cards []cardservice.RankedCard `json:"cards" validate:"required"`
}
