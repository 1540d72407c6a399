package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

// ActivityHandler accepts write-side telemetry from bots: sent messages,
// activity records, incoming messages and work-time pings.
type ActivityHandler struct {
	activity core.ActivityStore
	profiles core.ProfileStore
	log      *logrus.Logger
}

func NewActivityHandler(activity core.ActivityStore, profiles core.ProfileStore, log *logrus.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, profiles: profiles, log: log}
}

type sendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ManID is required for successful sends only: a failed send may die before a
// recipient was ever resolved, and those reports must still land in
// error_logs.
type messageSentRequest struct {
	ProfileID       string     `json:"profileId" validate:"required"`
	ManID           string     `json:"manId" validate:"required_without=Error"`
	Text            string     `json:"text"`
	MediaURL        *string    `json:"mediaUrl,omitempty"`
	Kind            string     `json:"kind" validate:"omitempty,oneof=letter chat"`
	TemplateText    *string    `json:"templateText,omitempty"`
	ResponseTimeSec *int       `json:"responseTimeSec,omitempty"`
	UsedAI          bool       `json:"usedAi"`
	IsReply         bool       `json:"isReply"`
	Error           *sendError `json:"error,omitempty"`
}

// MessageSent records one outgoing letter/chat message. The message row, its
// normalized content and the activity_log duplicate land in one transaction;
// failed sends additionally link an error_logs row.
func (h *ActivityHandler) MessageSent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req messageSentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = "letter"
	}

	profile, err := h.profiles.GetProfile(ctx, req.ProfileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "message record failed")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "unknown profile")
		return
	}

	msg := &models.Message{
		ProfileID:    req.ProfileID,
		ManID:        req.ManID,
		Kind:         req.Kind,
		AdminID:      profile.AssignedAdminID,
		TranslatorID: profile.AssignedTranslatorID,
		UsedAI:       req.UsedAI,
		IsReply:      req.IsReply,
		SentAt:       time.Now(),
	}

	actionType := "message_sent"
	if req.Error != nil {
		actionType = "send_failed"
		errID, err := h.activity.RecordError(ctx, &models.ErrorLog{
			ProfileID: req.ProfileID,
			Code:      req.Error.Code,
			Message:   req.Error.Message,
		})
		if err != nil {
			h.log.WithError(err).Warn("error log insert failed")
		} else {
			msg.ErrorLogID = &errID
		}
	}

	content := &models.MessageContent{
		ID:       uuid.NewString(),
		Text:     req.Text,
		MediaURL: req.MediaURL,
	}
	act := &models.ActivityRecord{
		ProfileID:       req.ProfileID,
		ActionType:      actionType,
		ManID:           req.ManID,
		TemplateText:    req.TemplateText,
		MessageText:     &req.Text,
		ResponseTimeSec: req.ResponseTimeSec,
		UsedAI:          req.UsedAI,
		IsReply:         req.IsReply,
		AdminID:         profile.AssignedAdminID,
		TranslatorID:    profile.AssignedTranslatorID,
	}

	if err := h.activity.RecordMessage(ctx, msg, content, act); err != nil {
		h.log.WithError(err).WithField("profile_id", req.ProfileID).Error("message record failed")
		writeError(w, http.StatusInternalServerError, "message record failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": msg.ID})
}

type activityLogRequest struct {
	ProfileID       string  `json:"profileId" validate:"required"`
	ActionType      string  `json:"actionType" validate:"required"`
	ManID           string  `json:"manId"`
	TemplateText    *string `json:"templateText,omitempty"`
	MessageText     *string `json:"messageText,omitempty"`
	ResponseTimeSec *int    `json:"responseTimeSec,omitempty"`
	UsedAI          bool    `json:"usedAi"`
	IsReply         bool    `json:"isReply"`
}

func (h *ActivityHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req activityLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	act := &models.ActivityRecord{
		ProfileID:       req.ProfileID,
		ActionType:      req.ActionType,
		ManID:           req.ManID,
		TemplateText:    req.TemplateText,
		MessageText:     req.MessageText,
		ResponseTimeSec: req.ResponseTimeSec,
		UsedAI:          req.UsedAI,
		IsReply:         req.IsReply,
	}
	if profile, err := h.profiles.GetProfile(ctx, req.ProfileID); err == nil && profile != nil {
		act.AdminID = profile.AssignedAdminID
		act.TranslatorID = profile.AssignedTranslatorID
	}

	if err := h.activity.InsertActivity(ctx, act); err != nil {
		writeError(w, http.StatusInternalServerError, "activity record failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type incomingMessageRequest struct {
	ProfileID      string `json:"profileId" validate:"required"`
	ManID          string `json:"manId" validate:"required"`
	Text           string `json:"text"`
	IsFirstFromMan bool   `json:"isFirstFromMan"`
}

func (h *ActivityHandler) IncomingMessage(w http.ResponseWriter, r *http.Request) {
	var req incomingMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.activity.InsertIncoming(r.Context(), &models.IncomingMessage{
		ProfileID:      req.ProfileID,
		ManID:          req.ManID,
		Text:           req.Text,
		IsFirstFromMan: req.IsFirstFromMan,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "incoming record failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type activityPingRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
}

func (h *ActivityHandler) ActivityPing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req activityPingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ping := &models.ActivityPing{ProfileID: req.ProfileID}
	if profile, err := h.profiles.GetProfile(ctx, req.ProfileID); err == nil && profile != nil {
		ping.TranslatorID = profile.AssignedTranslatorID
	}

	if err := h.activity.InsertPing(ctx, ping); err != nil {
		writeError(w, http.StatusInternalServerError, "ping record failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
