package auth

import (
	"context"

	"github.com/rezkam/dayplan/internal/domain"
)

type ctxKey string

const keyContextKey ctxKey = "dayplan.auth.key"

// WithKey returns a context carrying the authenticated key.
func WithKey(ctx context.Context, key *domain.APIKey) context.Context {
	return context.WithValue(ctx, keyContextKey, key)
}

// KeyFromContext returns the authenticated key, if any.
func KeyFromContext(ctx context.Context) (*domain.APIKey, bool) {
	key, ok := ctx.Value(keyContextKey).(*domain.APIKey)
	return key, ok && key != nil
}

// OwnerFromContext returns the owner of the authenticated key.
func OwnerFromContext(ctx context.Context) (string, bool) {
	key, ok := KeyFromContext(ctx)
	if !ok || key.OwnerID == "" {
		return "", false
	}
	return key.OwnerID, true
}
