package premium

import "github.com/xraph/premium/id"

// ID is the identifier type for subscriptions, journal entries, events and
// payout transfers. Policies are numbered instead.
type ID = id.ID
