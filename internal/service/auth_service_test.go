package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *models.PortalClaims, method jwt.SigningMethod, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func portalClaims(role models.UserRole, expires time.Time) *models.PortalClaims {
	return &models.PortalClaims{
		Role:  role,
		Email: "user@example.edu",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "clinic-portal",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "clinic-portal"})
	token := signToken(t, portalClaims(models.RoleDirector, time.Now().Add(time.Hour)), jwt.SigningMethodHS256, testSecret)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDirector, claims.Role)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.EffectiveDirectorID())
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "clinic-portal"})

	cases := map[string]string{
		"wrong secret": signToken(t, portalClaims(models.RoleAdmin, time.Now().Add(time.Hour)), jwt.SigningMethodHS256, "other"),
		"expired":      signToken(t, portalClaims(models.RoleAdmin, time.Now().Add(-time.Hour)), jwt.SigningMethodHS256, testSecret),
		"wrong alg":    signToken(t, portalClaims(models.RoleAdmin, time.Now().Add(time.Hour)), jwt.SigningMethodHS512, testSecret),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.IsAuthentication(err))
		})
	}
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret})
	token := signToken(t, portalClaims("client", time.Now().Add(time.Hour)), jwt.SigningMethodHS256, testSecret)

	_, err := svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.IsPermission(err))
}
