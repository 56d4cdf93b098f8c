package profile

import (
	"time"

	"tiergate/internal/domain/plan"
)

// Profile is a user account with its subscription tier
type Profile struct {
	UserID       string    `db:"user_id" json:"user_id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Plan         plan.Tier `db:"plan" json:"plan"`
	PlanName     string    `db:"plan_name" json:"plan_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// InitialState is the session state a new session of this user starts with
func (p *Profile) InitialState() map[string]interface{} {
	tier := p.Plan
	if !tier.Valid() {
		tier = plan.Default
	}
	return map[string]interface{}{
		"user_id":         p.UserID,
		plan.StateKey:     int(tier),
		plan.StateKeyName: tier.Label(),
	}
}

// Seed is a profile record as written in mock_database.json.
// Password is plain text and hashed before it is stored.
type Seed struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Plan     int    `json:"plan"`
	PlanName string `json:"plan_name,omitempty"`
}

// SeedFile is the layout of mock_database.json
type SeedFile struct {
	Users []Seed `json:"users"`
}
