package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/export"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// compositor may be nil, which disables POST /export.
func NewRouter(store *annot.Store, compositor *export.Compositor, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(store, compositor)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Annotations CRUD.
	r.Get("/annotations", h.ListAnnotations)
	r.Post("/annotations", h.CreateAnnotation)
	r.Patch("/annotations/{id}", h.PatchAnnotation)
	r.Delete("/annotations/{id}", h.DeleteAnnotation)
	r.Delete("/annotations", h.ClearAnnotations)

	// Board state.
	r.Get("/state", h.BoardState)
	r.Put("/tool", h.SetTool)
	r.Put("/color", h.SetColor)

	// Export.
	r.Post("/export", h.Export)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
