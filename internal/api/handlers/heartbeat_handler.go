package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
	"github.com/novaops/nova-control/internal/services"
)

// HeartbeatHandler is the bot-facing liveness + command-poll channel. Control
// is poll-based: whatever the DB says at the next heartbeat is what the bot
// gets; there is no queue or acknowledgment.
type HeartbeatHandler struct {
	bots     core.BotStore
	profiles core.ProfileStore
	users    core.UserStore
	billing  *services.BillingService
	log      *logrus.Logger
}

func NewHeartbeatHandler(bots core.BotStore, profiles core.ProfileStore, users core.UserStore, billing *services.BillingService, log *logrus.Logger) *HeartbeatHandler {
	return &HeartbeatHandler{bots: bots, profiles: profiles, users: users, billing: billing, log: log}
}

type heartbeatRequest struct {
	BotID            string          `json:"botId" validate:"required"`
	AccountDisplayID string          `json:"accountDisplayId"`
	Status           string          `json:"status"`
	Version          string          `json:"version"`
	ProfilesTotal    int             `json:"profilesTotal"`
	ExtendedData     json.RawMessage `json:"extendedData,omitempty"`
}

type heartbeatCommands struct {
	MailingEnabled bool   `json:"mailingEnabled"`
	BotEnabled     bool   `json:"botEnabled"`
	Proxy          string `json:"proxy"`
}

func (h *HeartbeatHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req heartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	ip := remoteIP(r)

	if err := h.bots.UpsertBot(ctx, req.BotID, req.AccountDisplayID, req.ExtendedData, now); err != nil {
		h.log.WithError(err).WithField("bot_id", req.BotID).Error("bot upsert failed")
		writeError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}
	if err := h.bots.InsertHeartbeat(ctx, &models.Heartbeat{
		BotID:            req.BotID,
		AccountDisplayID: req.AccountDisplayID,
		Status:           req.Status,
		IP:               ip,
		Version:          req.Version,
		ProfilesTotal:    req.ProfilesTotal,
		Timestamp:        now,
	}); err != nil {
		h.log.WithError(err).WithField("bot_id", req.BotID).Error("heartbeat insert failed")
		writeError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}

	if req.AccountDisplayID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	profile, err := h.profiles.GetProfile(ctx, req.AccountDisplayID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}
	if profile == nil {
		// Unknown profiles auto-provision so operators see them in the
		// dashboard before they are paid or assigned.
		profile = &models.Profile{ProfileID: req.AccountDisplayID, Status: "auto"}
		if err := h.profiles.CreateProfile(ctx, profile); err != nil {
			h.log.WithError(err).WithField("profile_id", req.AccountDisplayID).Error("auto-provision failed")
		}
	}
	_ = h.profiles.TouchLastOnline(ctx, req.AccountDisplayID, now)

	st, err := h.billing.CheckProfilePaymentStatus(ctx, req.AccountDisplayID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "heartbeat failed")
		return
	}

	if st.Status == models.PayStatusPaymentRequired {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"success": false,
			"status":  models.PayStatusPaymentRequired,
			"error":   "payment required",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"status":   st.Status,
		"daysLeft": st.DaysLeft,
		"canTrial": st.CanTrial,
		"commands": heartbeatCommands{
			MailingEnabled: st.IsPaid && !profile.Paused,
			BotEnabled:     profile.Status != "disabled",
			Proxy:          profile.Proxy,
		},
	})
}

// ListBots returns the latest heartbeat per bot seen in the last five
// minutes, for the dashboard's bot status view.
func (h *HeartbeatHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := currentUser(ctx, h.users); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	beats, err := h.bots.ListRecentHeartbeats(ctx, time.Now().Add(-5*time.Minute))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "bot list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bots": beats})
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
