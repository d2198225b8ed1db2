package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-lock/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-lock/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-attendance", TTL: time.Hour})

	token, expiresAt, err := svc.Issue("teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-attendance"})

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "sma-attendance"})
	forged, _, err := other.Issue("teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.Validate(forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	foreign := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"})
	wrongIssuer, _, err := foreign.Issue("teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.Validate(wrongIssuer)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	expired := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-attendance", TTL: time.Minute})
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := expired.Issue("teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.Validate(stale)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.JWTClaims{UserID: "teacher-1"})
	signed, err := none.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Validate(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
