package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

// TeamHandler manages the two-level hierarchy: the director creates admins,
// admins create translators under themselves.
type TeamHandler struct {
	users core.UserStore
}

func NewTeamHandler(users core.UserStore) *TeamHandler {
	return &TeamHandler{users: users}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	team, err := h.users.ListTeam(ctx, viewer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "team list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": team})
}

type createUserRequest struct {
	Username  string  `json:"username" validate:"required"`
	Login     string  `json:"login" validate:"required"`
	Password  string  `json:"password" validate:"required,min=6"`
	Role      string  `json:"role" validate:"required,oneof=admin translator"`
	AIEnabled bool    `json:"ai_enabled"`
	Salary    float64 `json:"salary"`
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role := models.Role(req.Role)
	if !canManageRole(viewer, role) {
		writeError(w, http.StatusForbidden, "insufficient role")
		return
	}

	if existing, err := h.users.GetUserByLogin(ctx, req.Login); err != nil {
		writeError(w, http.StatusInternalServerError, "user create failed")
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "login already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user create failed")
		return
	}

	u := &models.User{
		Username:     req.Username,
		Login:        req.Login,
		PasswordHash: string(hash),
		Role:         role,
		AIEnabled:    req.AIEnabled,
		Salary:       req.Salary,
	}
	if role == models.RoleTranslator {
		u.OwnerID = &viewer.ID
	}

	id, err := h.users.CreateUser(ctx, u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user create failed")
		return
	}
	u.ID = id
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

type updateUserRequest struct {
	Username  *string  `json:"username,omitempty"`
	Password  *string  `json:"password,omitempty" validate:"omitempty,min=6"`
	AIEnabled *bool    `json:"ai_enabled,omitempty"`
	Salary    *float64 `json:"salary,omitempty"`
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	target, ok := h.loadManagedUser(w, r, viewer)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Username != nil {
		target.Username = *req.Username
	}
	if req.AIEnabled != nil {
		target.AIEnabled = *req.AIEnabled
	}
	if req.Salary != nil {
		target.Salary = *req.Salary
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "user update failed")
			return
		}
		target.PasswordHash = string(hash)
	} else {
		target.PasswordHash = ""
	}

	if err := h.users.UpdateUser(ctx, target); err != nil {
		writeError(w, http.StatusInternalServerError, "user update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": target})
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	target, ok := h.loadManagedUser(w, r, viewer)
	if !ok {
		return
	}
	if target.ID == viewer.ID {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := h.users.DeleteUser(ctx, target.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "user delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// loadManagedUser resolves the {id} route param to a user row the viewer is
// allowed to manage; it writes the error response itself on failure.
func (h *TeamHandler) loadManagedUser(w http.ResponseWriter, r *http.Request, viewer *models.User) (*models.User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}
	target, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return nil, false
	}
	if target == nil || !canManageUser(viewer, target) {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return target, true
}

func canManageRole(viewer *models.User, role models.Role) bool {
	switch viewer.Role {
	case models.RoleDirector:
		return role == models.RoleAdmin || role == models.RoleTranslator
	case models.RoleAdmin:
		return role == models.RoleTranslator
	default:
		return false
	}
}

func canManageUser(viewer, target *models.User) bool {
	switch viewer.Role {
	case models.RoleDirector:
		return target.Role != models.RoleDirector || target.ID == viewer.ID
	case models.RoleAdmin:
		return target.Role == models.RoleTranslator && target.OwnerID != nil && *target.OwnerID == viewer.ID
	default:
		return false
	}
}
