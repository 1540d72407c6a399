package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	middleware "github.com/novaops/nova-control/internal/api/middlewares"
	"github.com/novaops/nova-control/internal/core"
	"github.com/novaops/nova-control/internal/models"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decodeJSON decodes the body into dst and runs struct validation.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// currentUser loads the authenticated user row for role decisions.
func currentUser(ctx context.Context, users core.UserStore) (*models.User, error) {
	id, ok := middleware.UserID(ctx)
	if !ok {
		return nil, errors.New("unauthenticated")
	}
	u, err := users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("user no longer exists")
	}
	return u, nil
}
