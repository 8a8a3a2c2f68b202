package event

import "context"

type Store interface {
	// AppendEvent stores e and sets e.Seq.
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
