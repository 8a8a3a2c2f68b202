package types

import "time"

// Entity carries record timestamps. Times come from the ledger clock so
// records created under a mocked clock stay deterministic.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with now in UTC.
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch sets UpdatedAt to now in UTC.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}
