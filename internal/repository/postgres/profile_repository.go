package postgres

import (
	"context"
	"database/sql"

	"tiergate/internal/domain/plan"
	"tiergate/internal/domain/profile"
	"tiergate/pkg/errors"
)

// ProfileRepository implements profile.Repository using PostgreSQL
type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `user_id, username, password_hash, plan, plan_name, created_at, updated_at`

func (r *ProfileRepository) GetByID(ctx context.Context, userID string) (*profile.Profile, error) {
	var p profile.Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "profile %s", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile")
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	var p profile.Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM user_profiles WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "profile %s", username)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get profile")
	}
	return &p, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]*profile.Profile, error) {
	var profiles []*profile.Profile
	if err := r.db.SelectContext(ctx, &profiles, `SELECT `+profileColumns+` FROM user_profiles ORDER BY user_id`); err != nil {
		return nil, errors.Wrap(err, "failed to list profiles")
	}
	return profiles, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, username, password_hash, plan, plan_name, created_at, updated_at)
		VALUES (:user_id, :username, :password_hash, :plan, :plan_name, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			plan = EXCLUDED.plan,
			plan_name = EXCLUDED.plan_name,
			updated_at = now()
	`
	_, err := r.db.NamedExecContext(ctx, query, p)
	if isUniqueViolation(err) {
		return errors.Wrapf(errors.ErrAlreadyExists, "username %s", p.Username)
	}
	if err != nil {
		return errors.Wrap(err, "failed to upsert profile")
	}
	return nil
}

func (r *ProfileRepository) UpdatePlan(ctx context.Context, userID string, tier plan.Tier) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET plan = $1, plan_name = $2, updated_at = now() WHERE user_id = $3`,
		int(tier), tier.Label(), userID)
	if err != nil {
		return errors.Wrap(err, "failed to update plan")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "profile %s", userID)
	}
	return nil
}

var _ profile.Repository = (*ProfileRepository)(nil)
