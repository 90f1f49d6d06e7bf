// ABOUTME: Authenticated identity propagation through request handlers
// ABOUTME: Provides WithIdentity/FromContext for passing identity via context

package auth

import (
	"context"
)

// Identity is the authenticated caller extracted from a request. The
// transport resolves it once per request and hands it to core
// operations as explicit parameters; nothing below the transport reads
// ambient request state.
type Identity struct {
	UserID   int64
	Username string
	Admin    bool
}

// identityKey is the key type for storing Identity in context.Context
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
// Only for handlers that are guaranteed to sit behind the auth middleware.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}
