package profile

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Service provides profile lookups, credential checks and plan sync
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService constructs a profile service instance.
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log.With("component", "profile_service")}
}

// Authenticate returns the profile for valid credentials.
// Unknown users and wrong passwords both yield ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	if username == "" || password == "" {
		return nil, errors.Wrap(errors.ErrUnauthorized, "username and password are required")
	}

	p, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid username or password")
	}
	if err != nil {
		return nil, errors.Wrap(err, "authenticate")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, errors.Wrap(errors.ErrUnauthorized, "invalid username or password")
	}
	return p, nil
}

// InitialState returns the starting session state of userID.
// Unknown users start with an empty state, which resolves to Basic.
func (s *Service) InitialState(ctx context.Context, userID string) (map[string]interface{}, error) {
	p, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}
	return p.InitialState(), nil
}

// Get fetches a profile by user id
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return p, nil
}

// SyncPlan raises the stored plan of userID to tier. Lower tiers are
// ignored so replayed or reordered events cannot downgrade a profile.
// Returns whether the profile changed.
func (s *Service) SyncPlan(ctx context.Context, userID string, tier plan.Tier) (bool, error) {
	if !tier.Valid() {
		return false, errors.Wrapf(errors.ErrInvalidPlanValue, "%d", int(tier))
	}

	p, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		s.log.Debugw("No profile to sync plan into", "user", userID)
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "load profile")
	}

	if p.Plan.AtLeast(tier) {
		return false, nil
	}

	if err := s.repo.UpdatePlan(ctx, userID, tier); err != nil {
		return false, errors.Wrap(err, "update plan")
	}

	s.log.Infow("Profile plan updated", "user", userID, "from", p.Plan.String(), "to", tier.String())
	return true, nil
}

// Import upserts seeds, hashing passwords with cost. Returns the number stored.
func (s *Service) Import(ctx context.Context, seeds []Seed, cost int) (int, error) {
	stored := 0
	for i, seed := range seeds {
		p, err := seed.ToProfile(cost)
		if err != nil {
			return stored, errors.Wrapf(err, "user %d", i)
		}
		if err := s.repo.Upsert(ctx, p); err != nil {
			return stored, errors.Wrapf(err, "store %s", p.UserID)
		}
		stored++
	}
	return stored, nil
}
