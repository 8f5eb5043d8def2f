package shared

import "context"

// PolicyDecision is the answer of an external insertion-limit policy.
type PolicyDecision struct {
	Allowed bool
	Message string
}

// InsertionPolicy is an external source of per-category/per-item insertion
// limits (plan tiers live outside this service). A deny is a soft stop, not
// an error path.
type InsertionPolicy interface {
	AllowItemInsert(ctx context.Context, categoryID int64) (PolicyDecision, error)
}

// AllowAllPolicy permits every insertion. Used when no external policy source
// is configured.
type AllowAllPolicy struct{}

// AllowItemInsert always allows.
func (AllowAllPolicy) AllowItemInsert(ctx context.Context, categoryID int64) (PolicyDecision, error) {
	return PolicyDecision{Allowed: true}, nil
}
