package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/novaops/nova-control/internal/core"
)

const maxUploadBytes = 20 << 20 // 20 MiB

// MediaHandler uploads message attachments to object storage and hands back
// their public URL for use in message_sent payloads.
type MediaHandler struct {
	objects core.ObjectClient
	users   core.UserStore
	log     *logrus.Logger
}

func NewMediaHandler(objects core.ObjectClient, users core.UserStore, log *logrus.Logger) *MediaHandler {
	return &MediaHandler{objects: objects, users: users, log: log}
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := currentUser(ctx, h.users); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if h.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read failed")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	key := fmt.Sprintf("media/%s%s", uuid.NewString(), filepath.Ext(header.Filename))

	url, err := h.objects.UploadFile(ctx, key, data, contentType)
	if err != nil {
		h.log.WithError(err).WithField("key", key).Error("media upload failed")
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url, "key": key})
}
