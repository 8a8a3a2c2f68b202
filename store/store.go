// Package store defines the unified persistence interface for premium
// records and is implemented by the memory, postgres, sqlite and mongo
// backends.
package store

import (
	"context"

	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/subscription"
)

// Store is the unified storage interface for all premium entities. The
// per-entity interfaces use distinct method names so they embed cleanly.
//
// Backends report missing records with premium.ErrPolicyNotFound and
// premium.ErrNoSubscription, duplicate subscribers with
// premium.ErrAlreadySubscribed, and failed months_paid or status guards with
// premium.ErrConcurrentUpdate.
type Store interface {
	policy.Store
	subscription.Store
	payment.Store
	event.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
