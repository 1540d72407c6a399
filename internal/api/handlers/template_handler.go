package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

type TemplateHandler struct {
	templates core.TemplateStore
	users     core.UserStore
}

func NewTemplateHandler(templates core.TemplateStore, users core.UserStore) *TemplateHandler {
	return &TemplateHandler{templates: templates, users: users}
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	templates, err := h.templates.ListTemplates(ctx, viewer.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "template list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": templates})
}

type templateRequest struct {
	Title string `json:"title" validate:"required"`
	Text  string `json:"text" validate:"required"`
	Kind  string `json:"kind" validate:"omitempty,oneof=letter chat"`
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = "letter"
	}

	t := &models.FavoriteTemplate{
		UserID: viewer.ID,
		Title:  req.Title,
		Text:   req.Text,
		Kind:   req.Kind,
	}
	id, err := h.templates.CreateTemplate(ctx, t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "template create failed")
		return
	}
	t.ID = id
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "template": t})
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := h.templates.DeleteTemplate(ctx, viewer.ID, id); err != nil {
		writeError(w, http.StatusInternalServerError, "template delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
