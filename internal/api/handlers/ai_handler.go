package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/core/llm"
)

// AIHandler generates assisted reply text for operators with AI enabled.
type AIHandler struct {
	llm   core.LLMProvider
	users core.UserStore
	log   *logrus.Logger
}

func NewAIHandler(llm core.LLMProvider, users core.UserStore, log *logrus.Logger) *AIHandler {
	return &AIHandler{llm: llm, users: users, log: log}
}

type generateRequest struct {
	Prompt      string `json:"prompt" validate:"required"`
	History     string `json:"history"`
	ProfileNote string `json:"profileNote"`
}

func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(ctx, h.users)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !viewer.AIEnabled {
		writeError(w, http.StatusForbidden, "ai generation not enabled for this account")
		return
	}
	if h.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "ai generation not configured")
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	system, user := llm.ReplyPrompt(req.ProfileNote, req.History, req.Prompt)
	text, err := h.llm.Generate(ctx, system, user)
	if err != nil {
		h.log.WithError(err).Error("ai generation failed")
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "text": text})
}
