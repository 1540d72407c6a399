package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novaops/nova-control/internal/models"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxRole
)

// JWTMiddleware validates the Authorization header and attaches the caller's
// user id and role to the request context.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"success":false,"error":"missing or invalid token"}`, http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"success":false,"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			id, ok := claims["user_id"].(float64)
			if !ok {
				http.Error(w, `{"success":false,"error":"invalid token claims"}`, http.StatusUnauthorized)
				return
			}
			role, _ := claims["role"].(string)

			ctx := context.WithValue(r.Context(), ctxUserID, int64(id))
			ctx = context.WithValue(ctx, ctxRole, models.Role(role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxUserID).(int64)
	return id, ok
}

// Role returns the authenticated role from the request context.
func Role(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(ctxRole).(models.Role)
	return role, ok
}

// WithUser injects identity into a context; used by handler tests.
func WithUser(ctx context.Context, id int64, role models.Role) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, id)
	return context.WithValue(ctx, ctxRole, role)
}
