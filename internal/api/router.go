package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc CardService, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Collections: the rest of the path is a collection description.
	r.Get("/collections", h.Collection)
	r.Get("/collections/*", h.Collection)

	// Cards.
	r.Post("/cards", h.CreateCard)
	r.Route("/cards/{id}", func(r chi.Router) {
		r.Get("/", h.GetCard)
		r.Get("/similar", h.Similar)
		r.Get("/suggestions", h.Suggestions)
		r.Get("/backlinks", h.Backlinks)
		r.Put("/references", h.SetReferences)
		r.Post("/references/preview", h.PreviewRemoval)
	})

	r.Get("/search", h.Search)
	r.Get("/rank", h.Rank)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
