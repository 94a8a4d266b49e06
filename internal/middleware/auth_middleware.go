package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/sirupsen/logrus"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionValidator is satisfied by service.JWTService.
type SessionValidator interface {
	ValidateSession(token string) (models.Identity, error)
}

type AuthMiddleware struct {
	sessions SessionValidator
	logger   *logrus.Logger
}

func NewAuthMiddleware(sessions SessionValidator, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, "No token provided")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondUnauthorized(w, "No token provided")
			return
		}

		identity, err := m.sessions.ValidateSession(parts[1])
		if err != nil {
			m.logger.WithError(err).Debug("Session validation failed")
			m.respondUnauthorized(w, "Invalid token")
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller set by RequireAuth.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

func (m *AuthMiddleware) respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"code":    apperrors.KindUnauthorized.String(),
		"message": message,
	})
}
