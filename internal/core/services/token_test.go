package services

import (
	"orderpulse/internal/core/domain"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", "orderpulse", time.Hour)
	id := domain.Identity{UserID: "u1", Role: domain.RolePharmacyStaff, PharmacyID: "ph-1"}

	tok, err := svc.GenerateToken(id)
	require.NoError(t, err)

	got, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := NewTokenService("secret", "orderpulse", time.Hour).GenerateToken(domain.Identity{UserID: "u1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenService("other", "orderpulse", time.Hour).ValidateToken(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("secret", "orderpulse", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := svc.GenerateToken(domain.Identity{UserID: "u1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenUnknownRole(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u1", "role": "root", "iss": "orderpulse", "exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService("secret", "orderpulse", time.Hour).ValidateToken(tok)
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestTokenDisabled(t *testing.T) {
	svc := NewTokenService("", "orderpulse", time.Hour)
	assert.False(t, svc.Enabled())
	_, err := svc.GenerateToken(domain.Identity{UserID: "u1", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestGenerateTokenRejectsBadIdentity(t *testing.T) {
	svc := NewTokenService("secret", "orderpulse", time.Hour)

	_, err := svc.GenerateToken(domain.Identity{Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = svc.GenerateToken(domain.Identity{UserID: "u1", Role: "root"})
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}
