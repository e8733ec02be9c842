package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbase/crudgate/config"
	"github.com/nexbase/crudgate/models"
)

func testValidator() *Validator {
	return NewValidator(config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "crudgate-test",
	})
}

func testClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		FirstName:        "Ada",
		Role:             "admin",
		Type:             "person",
		TenantID:         "acme",
	}
}

func TestValidator_RoundTrip(t *testing.T) {
	v := testValidator()

	token, err := v.IssueToken(testClaims(), time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "Ada", claims.FirstName)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "acme", claims.TenantID)
}

func TestValidator_WrongSecret(t *testing.T) {
	other := NewValidator(config.AuthConfig{JWTSecret: "other-secret", Issuer: "crudgate-test"})
	token, err := other.IssueToken(testClaims(), time.Hour)
	require.NoError(t, err)

	_, err = testValidator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_WrongIssuer(t *testing.T) {
	other := NewValidator(config.AuthConfig{JWTSecret: "test-secret", Issuer: "someone-else"})
	token, err := other.IssueToken(testClaims(), time.Hour)
	require.NoError(t, err)

	_, err = testValidator().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_Expired(t *testing.T) {
	v := testValidator()
	token, err := v.IssueToken(testClaims(), -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidator_Garbage(t *testing.T) {
	_, err := testValidator().ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_MissingTenantClaim(t *testing.T) {
	v := testValidator()
	claims := testClaims()
	claims.TenantID = ""
	token, err := v.IssueToken(claims, time.Hour)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_Validate(t *testing.T) {
	t.Run("missing subject", func(t *testing.T) {
		claims := testClaims()
		claims.Subject = ""
		assert.ErrorIs(t, claims.Validate(), ErrMissingClaim)
	})

	t.Run("unknown role", func(t *testing.T) {
		claims := testClaims()
		claims.Role = "superuser"
		assert.Error(t, claims.Validate())
	})

	t.Run("empty role is allowed", func(t *testing.T) {
		claims := testClaims()
		claims.Role = ""
		assert.NoError(t, claims.Validate())
	})
}

func TestClaims_ToMeta(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		FirstName:        "Ada",
		Role:             "normal",
		Type:             "person",
		BusinessID:       "biz-1",
		TenantID:         "hq",
		TenantGlobal:     true,
		PipelineTenantID: "shared",
	}

	meta := claims.ToMeta()
	require.NotNil(t, meta.Caller)
	assert.Equal(t, "u1", meta.Caller.ID)
	assert.Equal(t, models.RoleNormal, meta.Caller.Role)
	assert.Equal(t, "biz-1", meta.Caller.BusinessID)

	require.NotNil(t, meta.Tenant)
	assert.True(t, meta.Tenant.Global)
	assert.Equal(t, "shared", meta.Tenant.PipelineTenantID)
	assert.Equal(t, "shared", meta.EffectiveTenantID("tenant-default"),
		"global tenants act on their pipeline tenant")
}
