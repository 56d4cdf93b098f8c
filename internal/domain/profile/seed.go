package profile

import (
	"encoding/json"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
)

// LoadSeedFile reads a mock_database.json file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var file SeedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "parse %s: %v", path, err)
	}
	return &file, nil
}

// ToProfile validates a seed and hashes its password with cost
func (s Seed) ToProfile(cost int) (*Profile, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return nil, errors.NewValidationError("user_id", "required", s.UserID)
	}
	if strings.TrimSpace(s.Username) == "" {
		return nil, errors.NewValidationError("username", "required", s.Username)
	}
	if s.Password == "" {
		return nil, errors.NewValidationError("password", "required", "")
	}

	tier := plan.Default
	if s.Plan != 0 {
		parsed, ok := plan.Parse(s.Plan)
		if !ok {
			return nil, errors.NewValidationError("plan", "must be 1, 2 or 3", s.Plan)
		}
		tier = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	return &Profile{
		UserID:       s.UserID,
		Username:     s.Username,
		PasswordHash: string(hash),
		Plan:         tier,
		PlanName:     tier.Label(),
	}, nil
}
