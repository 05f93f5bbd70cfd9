package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/export"
	"github.com/starford/dagaz/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	store      *annot.Store
	compositor *export.Compositor
}

// NewHandler creates a new Handler. compositor may be nil, which disables
// the export endpoint.
func NewHandler(store *annot.Store, compositor *export.Compositor) *Handler {
	return &Handler{store: store, compositor: compositor}
}

// ListAnnotations handles GET /api/annotations.
//
//	@Summary		List all annotations in z-order
//	@Tags			annotations
//	@Produce		json
//	@Success		200	{object}	AnnotationListResponse
//	@Security		BearerAuth
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	items := h.store.Annotations()
	if items == nil {
		items = []models.Annotation{}
	}
	writeJSON(w, http.StatusOK, AnnotationListResponse{Annotations: items, Total: len(items)})
}

// CreateAnnotation handles POST /api/annotations.
//
//	@Summary		Create an annotation
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Annotation	true	"Annotation to create"
//	@Success		201		{object}	models.Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var a models.Annotation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := h.store.Add(a); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("annotation already exists"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// PatchAnnotation handles PATCH /api/annotations/{id}.
//
//	@Summary		Apply a partial update to an annotation
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Annotation id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		200		{object}	models.Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [patch]
func (h *Handler) PatchAnnotation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var p models.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	updated := h.store.Update(id, p)
	if updated == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
//
//	@Summary		Delete an annotation
//	@Tags			annotations
//	@Param			id	path	string	true	"Annotation id"
//	@Success		204	"Annotation deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.store.Remove(id) == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAnnotations handles DELETE /api/annotations.
//
//	@Summary		Remove every annotation
//	@Tags			annotations
//	@Success		204	"Board cleared"
//	@Security		BearerAuth
//	@Router			/annotations [delete]
func (h *Handler) ClearAnnotations(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// BoardState handles GET /api/state.
//
//	@Summary		Get the active tool, color and selection
//	@Tags			board
//	@Produce		json
//	@Success		200	{object}	BoardStateResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) BoardState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BoardStateResponse{
		Tool:       string(h.store.Tool()),
		Color:      h.store.Color(),
		SelectedID: h.store.SelectedID(),
	})
}

// SetTool handles PUT /api/tool.
//
//	@Summary		Switch the active tool
//	@Tags			board
//	@Accept			json
//	@Success		204	"Tool switched"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tool [put]
func (h *Handler) SetTool(w http.ResponseWriter, r *http.Request) {
	var req SetToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.store.SetTool(annot.Tool(req.Tool))
	w.WriteHeader(http.StatusNoContent)
}

// SetColor handles PUT /api/color.
//
//	@Summary		Set the active drawing color
//	@Tags			board
//	@Accept			json
//	@Success		204	"Color set"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/color [put]
func (h *Handler) SetColor(w http.ResponseWriter, r *http.Request) {
	var req SetColorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.store.SetColor(req.Color)
	w.WriteHeader(http.StatusNoContent)
}

// Export handles POST /api/export.
//
//	@Summary		Export the board as a PNG image
//	@Tags			export
//	@Accept			json
//	@Produce		image/png
//	@Param			body	body	ExportRequest	true	"Export window"
//	@Success		200		"PNG bytes"
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if h.compositor == nil {
		writeJSON(w, http.StatusNotFound, errorBody("export not configured"))
		return
	}
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.compositor.Export(r.Context(), export.Options{
		Width:               req.Width,
		ScrollLeft:          req.ScrollLeft,
		ScrollTop:           req.ScrollTop,
		IncludeAnnotations:  req.IncludeAnnotations,
		IncludeDependencies: req.IncludeDependencies,
	})
	if err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("export failed"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.SuggestedFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Bytes)
}
