package identity

import (
	"context"

	"github.com/nfrund/supportchat/internal/domain"
)

// Provider yields the current authenticated principal, or nil when there is
// none.
type Provider interface {
	CurrentIdentity(ctx context.Context) *domain.Identity
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) *domain.Identity

// CurrentIdentity implements Provider.
func (f ProviderFunc) CurrentIdentity(ctx context.Context) *domain.Identity { return f(ctx) }

// Static always returns the same identity. A nil identity models a signed
// out user.
func Static(id *domain.Identity) Provider {
	return ProviderFunc(func(context.Context) *domain.Identity {
		if id == nil {
			return nil
		}
		cp := *id
		return &cp
	})
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any.
func FromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(contextKey{}).(*domain.Identity)
	return id
}

// Context is a Provider that reads the identity placed on the request
// context by the auth middleware.
var Context Provider = ProviderFunc(FromContext)
