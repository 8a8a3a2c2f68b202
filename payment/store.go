package payment

import "context"

// Store reads the journal. Records are appended only as part of a
// subscription commit, so there is no standalone append method.
type Store interface {
	ListPayments(ctx context.Context, subscriberID string) ([]*Record, error)
}
