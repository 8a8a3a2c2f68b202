package policy

import "context"

// Store persists the catalog. Get returns an error wrapping a not-found
// sentinel for unknown IDs; LastPolicyID returns 0 for an empty catalog.
type Store interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	GetPolicy(ctx context.Context, policyID int64) (*Policy, error)
	ListPolicyIDs(ctx context.Context) ([]int64, error)
	LastPolicyID(ctx context.Context) (int64, error)
}
