package premium

import (
	"github.com/xraph/premium/gate"
	"github.com/xraph/premium/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Actor is re-exported from gate package.
type Actor = gate.Actor

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	Zero = types.Zero
)

// WithActor returns a context carrying the calling actor.
var WithActor = gate.WithActor
