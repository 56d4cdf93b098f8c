package auth

import (
	"context"

	"tiergate/internal/domain/profile"
	"tiergate/pkg/auth"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Service handles login (Application Layer)
type Service struct {
	profiles   *profile.Service
	jwtService *auth.JWTService
	log        *logger.Logger
}

// NewService creates a new auth service
func NewService(profiles *profile.Service, jwtService *auth.JWTService, log *logger.Logger) *Service {
	return &Service{
		profiles:   profiles,
		jwtService: jwtService,
		log:        log.With("service", "auth"),
	}
}

// LoginInput contains data for user login
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the login result. State is what a new session of the
// user starts with.
type LoginResponse struct {
	Token  string                 `json:"token"`
	UserID string                 `json:"user_id"`
	State  map[string]interface{} `json:"state"`
}

// Login checks credentials and issues a token
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResponse, error) {
	p, err := s.profiles.Authenticate(ctx, input.Username, input.Password)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			s.log.Infow("Login rejected", "username", input.Username)
		}
		return nil, err
	}

	token, err := s.jwtService.GenerateToken(p.UserID, p.Username)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate token")
	}

	s.log.Infow("User logged in", "user", p.UserID, "plan", p.Plan.String())

	return &LoginResponse{
		Token:  token,
		UserID: p.UserID,
		State:  p.InitialState(),
	}, nil
}

// ValidateToken returns the user id carried by a token
func (s *Service) ValidateToken(token string) (string, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return "", errors.Wrap(errors.ErrUnauthorized, err.Error())
	}
	return claims.UserID(), nil
}
