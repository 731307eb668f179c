// ABOUTME: Authenticated user propagation through request contexts
// ABOUTME: Provides WithUser/UserFromContext for relay handlers

package auth

import (
	"context"

	"github.com/2389/pause-notify/internal/identity"
)

type userContextKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user identity.ID) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (identity.ID, bool) {
	user, ok := ctx.Value(userContextKey{}).(identity.ID)
	if !ok || user.IsZero() {
		return identity.None, false
	}
	return user, true
}
