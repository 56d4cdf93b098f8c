package profile

import (
	"context"

	"tiergate/internal/domain/plan"
)

// Repository stores user profiles
type Repository interface {
	GetByID(ctx context.Context, userID string) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)

	// Upsert inserts or replaces a profile keyed by user id
	Upsert(ctx context.Context, p *Profile) error

	// UpdatePlan sets the plan of an existing profile
	UpdatePlan(ctx context.Context, userID string, tier plan.Tier) error
}
