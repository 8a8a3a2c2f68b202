package policy

import (
	"time"

	"github.com/xraph/premium/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Policy is an immutable catalog entry. IDs are assigned densely from 1.
type Policy struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	CoverageLimit types.Money       `json:"coverage_limit"`
	Premium       types.Money       `json:"premium"`
	ValidityYears int               `json:"validity_years"`
	Status        Status            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Exists reports whether p is a real catalog entry rather than the zero
// value returned for unknown IDs.
func (p Policy) Exists() bool { return p.ID != 0 }

// Input holds administrator-supplied fields for a new policy.
type Input struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	CoverageLimit types.Money       `json:"coverage_limit"`
	Premium       types.Money       `json:"premium"`
	ValidityYears int               `json:"validity_years"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Build snapshots input into a Policy with the given ID.
func (in Input) Build(policyID int64, now time.Time) *Policy {
	var meta map[string]string
	if len(in.Metadata) > 0 {
		meta = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			meta[k] = v
		}
	}
	return &Policy{
		ID:            policyID,
		Name:          in.Name,
		Description:   in.Description,
		CoverageLimit: in.CoverageLimit,
		Premium:       in.Premium,
		ValidityYears: in.ValidityYears,
		Status:        StatusActive,
		Metadata:      meta,
		CreatedAt:     now.UTC(),
	}
}
