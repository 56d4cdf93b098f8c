package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-min-32-characters-long"

func TestJWTService_RoundTrip(t *testing.T) {
	service := NewJWTService(testSecret, "tiergate", time.Hour)

	token, err := service.GenerateToken("u_123", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u_123", claims.UserID())
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "tiergate", claims.Issuer)
}

func TestJWTService_ValidateToken(t *testing.T) {
	valid := NewJWTService(testSecret, "tiergate", time.Hour)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				tok, err := NewJWTService(testSecret, "tiergate", -time.Hour).GenerateToken("u_1", "a")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := NewJWTService("another-secret-key-min-32-characters", "tiergate", time.Hour).GenerateToken("u_1", "a")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				tok, err := NewJWTService(testSecret, "someone-else", time.Hour).GenerateToken("u_1", "a")
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    "tiergate",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				}}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return tok
			},
			wantErr: ErrMissingClaims,
		},
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not.a.token" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := valid.ValidateToken(tt.token(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWTService_GenerateRequiresUser(t *testing.T) {
	_, err := NewJWTService(testSecret, "tiergate", time.Hour).GenerateToken("", "admin")
	assert.ErrorIs(t, err, ErrMissingClaims)
}
