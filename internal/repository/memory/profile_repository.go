package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tiergate/internal/domain/plan"
	"tiergate/internal/domain/profile"
	"tiergate/pkg/errors"
)

// ProfileRepository implements profile.Repository in process memory
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]profile.Profile)}
}

func (r *ProfileRepository) GetByID(_ context.Context, userID string) (*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "profile %s", userID)
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUsername(_ context.Context, username string) (*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Username == username {
			found := p
			return &found, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "profile %s", username)
}

func (r *ProfileRepository) List(_ context.Context) ([]*profile.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*profile.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		item := p
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *ProfileRepository) Upsert(_ context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.profiles {
		if existing.Username == p.Username && id != p.UserID {
			return errors.Wrapf(errors.ErrAlreadyExists, "username %s", p.Username)
		}
	}

	now := time.Now().UTC()
	stored := *p
	if existing, ok := r.profiles[p.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.profiles[p.UserID] = stored
	return nil
}

func (r *ProfileRepository) UpdatePlan(_ context.Context, userID string, tier plan.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "profile %s", userID)
	}
	p.Plan = tier
	p.PlanName = tier.Label()
	p.UpdatedAt = time.Now().UTC()
	r.profiles[userID] = p
	return nil
}

var _ profile.Repository = (*ProfileRepository)(nil)
