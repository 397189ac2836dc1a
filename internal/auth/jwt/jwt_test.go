package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmflow/pharmflow-backend/internal/auth/jwt"
	"github.com/pharmflow/pharmflow-backend/pkg/config"
	"github.com/pharmflow/pharmflow-backend/pkg/errors"
)

func newManager(accessExpiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "pharmflow-test",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newManager(15 * time.Minute)
	pharmacyID := "pharmacy-1"

	token, err := m.GenerateAccessToken("user-1", "anna@pharmflow.test", "manager", &pharmacyID)
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "anna@pharmflow.test", claims.Email)
	assert.Equal(t, "manager", claims.Role)
	require.NotNil(t, claims.PharmacyID)
	assert.Equal(t, "pharmacy-1", *claims.PharmacyID)
}

func TestAccessTokenExpired(t *testing.T) {
	m := newManager(-1 * time.Minute)

	token, err := m.GenerateAccessToken("user-1", "anna@pharmflow.test", "manager", nil)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenExpired))
}

func TestAccessTokenTampered(t *testing.T) {
	m := newManager(15 * time.Minute)

	token, err := m.GenerateAccessToken("user-1", "anna@pharmflow.test", "manager", nil)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token + "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newManager(15 * time.Minute)

	token, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	userID, err := m.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	other := jwt.NewManager(&config.JWTConfig{
		Secret:        "different-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "pharmflow-test",
	})
	m := newManager(15 * time.Minute)

	token, err := other.GenerateAccessToken("user-1", "anna@pharmflow.test", "manager", nil)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
}
