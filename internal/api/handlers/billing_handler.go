package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
	"github.com/novaops/nova-control/internal/services"
)

type BillingHandler struct {
	billing *services.BillingService
	store   core.BillingStore
	users   core.UserStore
	log     *logrus.Logger
}

func NewBillingHandler(billing *services.BillingService, store core.BillingStore, users core.UserStore, log *logrus.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, store: store, users: users, log: log}
}

type topupRequest struct {
	UserID  int64   `json:"user_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	Comment string  `json:"comment"`
}

// Topup credits an admin's balance. Director only.
func (h *BillingHandler) Topup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if viewer.Role != models.RoleDirector {
		writeError(w, http.StatusForbidden, "director only")
		return
	}

	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.billing.Topup(ctx, viewer, req.UserID, req.Amount, req.Comment); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.WithError(err).WithField("user_id", req.UserID).Error("topup failed")
		writeError(w, http.StatusInternalServerError, "topup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type payRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
	Months    int    `json:"months"`
}

// Pay debits the caller's balance and extends the profile's paid period.
func (h *BillingHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if viewer.Role == models.RoleTranslator {
		writeError(w, http.StatusForbidden, "translators cannot pay for profiles")
		return
	}

	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	until, err := h.billing.PayProfile(ctx, viewer, req.ProfileID, req.Months)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "profile not found")
		case errors.Is(err, services.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, "insufficient balance")
		default:
			h.log.WithError(err).WithField("profile_id", req.ProfileID).Error("payment failed")
			writeError(w, http.StatusInternalServerError, "payment failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paid_until": until})
}

type trialRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

// Trial consumes the profile's one free trial period.
func (h *BillingHandler) Trial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if viewer.Role == models.RoleTranslator {
		writeError(w, http.StatusForbidden, "translators cannot start trials")
		return
	}

	var req trialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	until, err := h.billing.StartTrial(ctx, req.ProfileID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, "profile not found")
		case errors.Is(err, services.ErrTrialAlreadyUsed):
			writeError(w, http.StatusConflict, "trial already used")
		default:
			h.log.WithError(err).WithField("profile_id", req.ProfileID).Error("trial failed")
			writeError(w, http.StatusInternalServerError, "trial failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "trial_until": until})
}

// Status returns the derived payment state of one profile.
func (h *BillingHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := currentUser(ctx, h.users); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	st, err := h.billing.CheckProfilePaymentStatus(ctx, chi.URLParam(r, "profileID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": st})
}

// History returns the billing ledger, scoped to the caller unless director.
func (h *BillingHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	entries, err := h.store.ListBillingHistory(ctx, viewer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": entries})
}
