// Package session resolves the user that owns newly created records.
package session

import (
	"context"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
)

// Provider returns the active principal.
type Provider interface {
	UserID(ctx context.Context) (string, error)
}

// Static always returns the same user, typically from configuration.
type Static string

// UserID implements Provider.
func (s Static) UserID(context.Context) (string, error) {
	if s == "" {
		return "", apperrors.New(apperrors.ErrUnauthenticated, "no active user")
	}
	return string(s), nil
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext prefers a user attached to the context and falls back to
// another provider.
type FromContext struct {
	Fallback Provider
}

// UserID implements Provider.
func (p FromContext) UserID(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id, nil
	}
	if p.Fallback == nil {
		return "", apperrors.New(apperrors.ErrUnauthenticated, "no active user")
	}
	return p.Fallback.UserID(ctx)
}
