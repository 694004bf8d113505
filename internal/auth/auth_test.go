package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewService("unit-test-secret")
	service.RegisterAPICredentials(DefaultAPIKey, DefaultAPISecret)

	token, err := service.GenerateToken(Credentials{APIKey: DefaultAPIKey, APISecret: DefaultAPISecret})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIKey, claims.ClientID)
	assert.Contains(t, claims.Permissions, "inventory")
	assert.WithinDuration(t, time.Now().Add(tokenTTL), token.Expiration, time.Minute)
}

func TestGenerateTokenRejectsBadCredentials(t *testing.T) {
	service := NewService("unit-test-secret")
	service.RegisterAPICredentials(DefaultAPIKey, DefaultAPISecret)

	_, err := service.GenerateToken(Credentials{APIKey: DefaultAPIKey, APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.GenerateToken(Credentials{APIKey: "unknown", APISecret: DefaultAPISecret})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	issuer := NewService("secret-a")
	issuer.RegisterAPICredentials(DefaultAPIKey, DefaultAPISecret)
	verifier := NewService("secret-b")

	token, err := issuer.GenerateToken(Credentials{APIKey: DefaultAPIKey, APISecret: DefaultAPISecret})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token.Token)
	assert.Error(t, err)
}
