// Package identity answers the single question the ledger asks of the
// provider and user directories: may this identity transact?
package identity

import (
	"context"
	"sync"
)

// Authorizer reports whether subscriberID may transact.
type Authorizer interface {
	IsAuthorized(ctx context.Context, subscriberID string) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, subscriberID string) (bool, error)

// IsAuthorized implements Authorizer.
func (f AuthorizerFunc) IsAuthorized(ctx context.Context, subscriberID string) (bool, error) {
	return f(ctx, subscriberID)
}

// AllowAll authorizes every non-empty identity.
func AllowAll() Authorizer {
	return AuthorizerFunc(func(_ context.Context, subscriberID string) (bool, error) {
		return subscriberID != "", nil
	})
}

// Registry is an in-memory approved-identity set. Users must also be
// verified before they are authorized.
type Registry struct {
	mu       sync.RWMutex
	approved map[string]bool // identity -> verified
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{approved: make(map[string]bool)}
}

// Approve adds an identity. Verified identities are authorized immediately.
func (r *Registry) Approve(identity string, verified bool) {
	r.mu.Lock()
	r.approved[identity] = verified
	r.mu.Unlock()
}

// Verify flips the one-time verification flag for an approved identity.
// It reports false if the identity was never approved.
func (r *Registry) Verify(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.approved[identity]; !ok {
		return false
	}
	r.approved[identity] = true
	return true
}

// Revoke removes an identity.
func (r *Registry) Revoke(identity string) {
	r.mu.Lock()
	delete(r.approved, identity)
	r.mu.Unlock()
}

// IsAuthorized implements Authorizer.
func (r *Registry) IsAuthorized(_ context.Context, identity string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[identity], nil
}
