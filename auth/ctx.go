package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var providerCtxKey = &contextKey{"provider"}

type contextKey struct {
	name string
}

const (
	// ProviderLocalsKey holds the request Provider in router locals
	ProviderLocalsKey = "auth_provider"
	// CurrentUserLocalsKey holds the *User, or nil, in router locals
	CurrentUserLocalsKey = "current_user"
	// AuthErrorLocalsKey holds the initial session fetch error, if any
	AuthErrorLocalsKey = "auth_error"
)

// WithProvider sets the Provider in the given context
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerCtxKey, p)
}

// ProviderFromContext finds the Provider in the context
func ProviderFromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(providerCtxKey).(*Provider)
	return p, ok && p != nil
}

// ProviderFromRouter finds the Provider in the router locals
func ProviderFromRouter(ctx router.Context) (*Provider, bool) {
	raw := ctx.Locals(ProviderLocalsKey)
	if raw == nil {
		return nil, false
	}
	p, ok := raw.(*Provider)
	return p, ok && p != nil
}

// StateFromRouter returns the request auth state. Without a provider the
// state is resolved and unauthenticated.
func StateFromRouter(ctx router.Context) AuthState {
	if p, ok := ProviderFromRouter(ctx); ok {
		return p.State()
	}
	return AuthState{}
}

// CurrentUser returns the signed in user, if any
func CurrentUser(ctx router.Context) (*User, bool) {
	u := StateFromRouter(ctx).User
	return u, u != nil
}
