// Package gate implements the capability check that guards administrative
// operations. The engine never compares identities inline: mutating catalog
// paths are wrapped with Guard, which consults a Gate before running.
package gate

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when the actor lacks the required capability.
var ErrUnauthorized = errors.New("premium: unauthorized")

// Capability names an administrative permission.
type Capability string

// ManageCatalog permits policy creation.
const ManageCatalog Capability = "catalog:manage"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID string
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the actor from ctx.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || a.ID == "" {
		return Actor{}, false
	}
	return a, true
}

// Gate decides whether the actor in ctx holds a capability.
type Gate interface {
	Allow(ctx context.Context, c Capability) error
}

// Func adapts a function to Gate.
type Func func(ctx context.Context, c Capability) error

// Allow implements Gate.
func (f Func) Allow(ctx context.Context, c Capability) error { return f(ctx, c) }

// Admin grants every capability to a single administrator identity.
type Admin struct {
	id []byte
}

// NewAdmin returns a Gate for the given administrator ID.
func NewAdmin(adminID string) *Admin {
	return &Admin{id: []byte(adminID)}
}

// Allow implements Gate.
func (a *Admin) Allow(ctx context.Context, _ Capability) error {
	actor, ok := ActorFrom(ctx)
	if !ok || len(a.id) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(actor.ID), a.id) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Deny rejects every request. It is the engine default until an
// administrator is configured.
func Deny() Gate {
	return Func(func(context.Context, Capability) error { return ErrUnauthorized })
}

// Guard wraps fn so that it only runs when g allows c.
func Guard[T any](g Gate, c Capability, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		if err := g.Allow(ctx, c); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	}
}
