package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// KeyAuthenticator resolves a raw API key to its stored record.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error)
}

// Auth is HTTP middleware for API key authentication.
type Auth struct {
	authenticator KeyAuthenticator
}

// NewAuth creates a new auth middleware.
func NewAuth(authenticator KeyAuthenticator) *Auth {
	return &Auth{authenticator: authenticator}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Browsers cannot set headers on websocket upgrades, so those requests may
// pass the key as the access_token query parameter instead.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if token := r.URL.Query().Get("access_token"); token != "" && isWebsocketUpgrade(r) {
			return token, ""
		}
		return "", "missing Authorization header"
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", "invalid Authorization header format, expected: Bearer <token>"
	}
	return strings.TrimSpace(token), ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Validate is a Chi middleware that authenticates the caller and stores the
// key, and with it the owner, in the request context.
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, problem := bearerToken(r)
		if problem != "" {
			slog.WarnContext(r.Context(), "authentication failed: "+problem,
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, problem)
			return
		}

		key, err := a.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				slog.WarnContext(r.Context(), "authentication failed: invalid or expired API key",
					"path", r.URL.Path,
					"method", r.Method)
			} else {
				slog.ErrorContext(r.Context(), "authentication failed: unexpected error",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err)
			}
			response.Unauthorized(w, "invalid or expired API key")
			return
		}

		slog.DebugContext(r.Context(), "authentication successful",
			"path", r.URL.Path,
			"key_id", key.ID,
			"owner_id", key.OwnerID)

		next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), key)))
	})
}
