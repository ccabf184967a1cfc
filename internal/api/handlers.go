package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cardweb/internal/index"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc CardService
}

// NewHandler creates a new Handler.
func NewHandler(svc CardService) *Handler {
	return &Handler{svc: svc}
}

// collectionPath extracts the description path after /collections/.
// Segments are unescaped one by one; an encoded slash stays encoded so a
// free-text filter argument remains a single segment.
func collectionPath(r *http.Request) string {
	segs := strings.Split(chi.URLParam(r, "*"), "/")
	for i, seg := range segs {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			continue
		}
		segs[i] = strings.ReplaceAll(decoded, "/", "%2F")
	}
	return strings.Join(segs, "/")
}

func cardID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		return decoded
	}
	return id
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// Collection handles GET /api/collections/*.
//
//	@Summary		Evaluate a collection description
//	@Tags			collections
//	@Produce		json
//	@Param			path	path		string	false	"Collection description, e.g. everything/starred/sort/title/"
//	@Param			card	query		string	false	"Active card id or slug"
//	@Success		200		{object}	cardservice.CollectionView
//	@Security		BearerAuth
//	@Router			/collections/{path} [get]
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Evaluate(r.Context(), collectionPath(r), r.URL.Query().Get("card"))
	if err != nil {
		writeError(w, "evaluate collection", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetCard handles GET /api/cards/{id}.
//
//	@Summary		Get a single card by id or slug
//	@Tags			cards
//	@Produce		json
//	@Param			id	path		string	true	"Card id or slug"
//	@Success		200	{object}	cardservice.CardDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id} [get]
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.GetCard(r.Context(), cardID(r))
	if err != nil {
		writeError(w, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Similar handles GET /api/cards/{id}/similar.
//
//	@Summary		Cards whose text overlaps the given card
//	@Tags			cards
//	@Produce		json
//	@Param			id		path		string	true	"Card id or slug"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SimilarResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/similar [get]
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Similar(r.Context(), cardID(r), intParam(r, "limit"))
	if err != nil {
		writeError(w, "similar", err)
		return
	}
	writeJSON(w, http.StatusOK, SimilarResponse{Cards: cards})
}

// Suggestions handles GET /api/cards/{id}/suggestions.
//
//	@Summary		Concepts the card mentions but does not reference
//	@Tags			cards
//	@Produce		json
//	@Param			id	path		string	true	"Card id or slug"
//	@Success		200	{object}	SuggestionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/suggestions [get]
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Suggestions(r.Context(), cardID(r))
	if err != nil {
		writeError(w, "suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: out})
}

// Backlinks handles GET /api/cards/{id}/backlinks.
//
//	@Summary		References pointing at a card
//	@Tags			cards
//	@Produce		json
//	@Param			id	path		string	true	"Card id or slug"
//	@Success		200	{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Backlinks(r.Context(), cardID(r))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{References: rows})
}

// SetReferences handles PUT /api/cards/{id}/references.
//
//	@Summary		Set or remove references on a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Card id or slug"
//	@Param			body	body		SetReferencesRequest	true	"Edits"
//	@Success		200		{object}	cardservice.ReferenceUpdate
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/references [put]
func (h *Handler) SetReferences(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req SetReferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Edits) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("edits are required"))
		return
	}
	upd, err := h.svc.SetReferences(r.Context(), cardID(r), req.Edits)
	if err != nil {
		writeError(w, "set references", err)
		return
	}
	writeJSON(w, http.StatusOK, upd)
}

// PreviewRemoval handles POST /api/cards/{id}/references/preview.
//
//	@Summary		Cards a reference edit would remove from a collection
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Card id or slug"
//	@Param			body	body		PreviewRemovalRequest	true	"Collection and edits"
//	@Success		200		{object}	PreviewRemovalResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards/{id}/references/preview [post]
func (h *Handler) PreviewRemoval(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req PreviewRemovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	removed, err := h.svc.PreviewRemoval(r.Context(), cardID(r), req.Collection, req.Edits)
	if err != nil {
		writeError(w, "preview removal", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewRemovalResponse{Removed: removed})
}

// CreateCard handles POST /api/cards.
//
//	@Summary		Create a new card with a generated id
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCardRequest	true	"Card to create"
//	@Success		201		{object}	models.Card
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	card, err := h.svc.CreateCard(r.Context(), req)
	if err != nil {
		writeError(w, "create card", err)
		return
	}
	w.Header().Set("Location", "/api/cards/"+card.ID)
	writeJSON(w, http.StatusCreated, card)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across cards
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q, intParam(r, "limit"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Rank handles GET /api/rank.
//
//	@Summary		Cards ordered by PageRank
//	@Tags			graph
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	RankResponse
//	@Security		BearerAuth
//	@Router			/rank [get]
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Rank(r.Context(), intParam(r, "limit"))
	if err != nil {
		writeError(w, "rank", err)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{Cards: cards})
}
