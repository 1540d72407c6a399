package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

type ProfileHandler struct {
	profiles core.ProfileStore
	users    core.UserStore
}

func NewProfileHandler(profiles core.ProfileStore, users core.UserStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, users: users}
}

// List returns the profiles the caller may see, scoped by role.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	profiles, err := h.profiles.ListProfiles(ctx, viewer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profiles": profiles})
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	profile, err := h.profiles.GetProfile(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	if profile == nil || !h.canSeeProfile(ctx, viewer, profile) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": profile})
}

// Optional fields are pointers: an omitted field keeps the stored value on
// update instead of blanking the column.
type profileRequest struct {
	ProfileID            string  `json:"profile_id" validate:"required"`
	Login                *string `json:"login,omitempty"`
	Password             *string `json:"password,omitempty"`
	Note                 *string `json:"note,omitempty"`
	Paused               *bool   `json:"paused,omitempty"`
	Proxy                *string `json:"proxy,omitempty"`
	AssignedAdminID      *int64  `json:"assigned_admin_id,omitempty"`
	AssignedTranslatorID *int64  `json:"assigned_translator_id,omitempty"`
	Status               *string `json:"status,omitempty"`
}

// Save creates the profile, or merges the provided fields into it if the
// profile_id already exists. Re-adding a previously deleted profile restores
// its backed-up paid_until.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if viewer.Role == models.RoleTranslator {
		writeError(w, http.StatusForbidden, "translators cannot manage profiles")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.profiles.GetProfile(ctx, req.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile save failed")
		return
	}

	var p *models.Profile
	if existing != nil {
		if !h.canSeeProfile(ctx, viewer, existing) {
			writeError(w, http.StatusForbidden, "not your profile")
			return
		}
		p = existing
	} else {
		p = &models.Profile{ProfileID: req.ProfileID, Status: "new"}
	}

	if req.Login != nil {
		p.Login = *req.Login
	}
	if req.Password != nil {
		p.Password = *req.Password
	}
	if req.Note != nil {
		p.Note = *req.Note
	}
	if req.Paused != nil {
		p.Paused = *req.Paused
	}
	if req.Proxy != nil {
		p.Proxy = *req.Proxy
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.AssignedAdminID != nil {
		p.AssignedAdminID = req.AssignedAdminID
	}
	if req.AssignedTranslatorID != nil {
		p.AssignedTranslatorID = req.AssignedTranslatorID
	}
	// admins always own what they save
	if viewer.Role == models.RoleAdmin {
		p.AssignedAdminID = &viewer.ID
	}

	if existing != nil {
		if err := h.profiles.UpdateProfile(ctx, p); err != nil {
			writeError(w, http.StatusInternalServerError, "profile update failed")
			return
		}
	} else {
		if err := h.profiles.CreateProfile(ctx, p); err != nil {
			writeError(w, http.StatusInternalServerError, "profile create failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": p})
}

// Delete removes a profile; a still-valid paid_until is backed up first so a
// later re-add restores it.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if viewer.Role == models.RoleTranslator {
		writeError(w, http.StatusForbidden, "translators cannot manage profiles")
		return
	}

	id := chi.URLParam(r, "id")
	existing, err := h.profiles.GetProfile(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile delete failed")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if !h.canSeeProfile(ctx, viewer, existing) {
		writeError(w, http.StatusForbidden, "not your profile")
		return
	}

	if err := h.profiles.DeleteProfile(ctx, id); err != nil {
		writeError(w, http.StatusInternalServerError, "profile delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// canSeeProfile mirrors the SQL role filter: directors see everything, admins
// see their own profiles plus those run by translators they own, translators
// only their own.
func (h *ProfileHandler) canSeeProfile(ctx context.Context, viewer *models.User, p *models.Profile) bool {
	switch viewer.Role {
	case models.RoleDirector:
		return true
	case models.RoleAdmin:
		if p.AssignedAdminID != nil && *p.AssignedAdminID == viewer.ID {
			return true
		}
		if p.AssignedTranslatorID != nil {
			t, err := h.users.GetUserByID(ctx, *p.AssignedTranslatorID)
			return err == nil && t != nil && t.OwnerID != nil && *t.OwnerID == viewer.ID
		}
		return false
	default:
		return p.AssignedTranslatorID != nil && *p.AssignedTranslatorID == viewer.ID
	}
}
