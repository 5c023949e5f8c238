package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(ttl time.Duration) (TokenService, error) {
	return NewTokenService(ttl, "test-issuer", "test-audience", false, "", "", testSecret)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		privatePEM  string
		publicPEM   string
		secretKey   string
		expectError bool
	}{
		{name: "valid symmetric key configuration", secretKey: testSecret},
		{name: "missing secret key", expectError: true},
		{name: "rsa without keys", useRSAKeys: true, expectError: true},
		{name: "rsa with garbage keys", useRSAKeys: true, privatePEM: "x", publicPEM: "y", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Hour, "iss", "aud", tt.useRSAKeys, tt.privatePEM, tt.publicPEM, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	service, err := createTestTokenService(15 * time.Minute)
	require.NoError(t, err)

	token, err := service.IssueToken(123)
	require.NoError(t, err)

	other, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", false, "", "", "another-secret-key-that-is-32-chars!!")
	require.NoError(t, err)
	foreign, err := other.IssueToken(123)
	require.NoError(t, err)

	wrongAud, err := NewTokenService(15*time.Minute, "test-issuer", "someone-else", false, "", "", testSecret)
	require.NoError(t, err)
	wrongAudToken, err := wrongAud.IssueToken(123)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectError error
	}{
		{name: "valid token", token: token},
		{name: "empty token", token: "", expectError: ErrTokenInvalid},
		{name: "invalid token format", token: "invalid.token.format", expectError: ErrTokenInvalid},
		{name: "token signed with another key", token: foreign, expectError: ErrTokenInvalid},
		{name: "token for another audience", token: wrongAudToken, expectError: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(123), claims.UserID)
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	service, err := createTestTokenService(-time.Minute)
	require.NoError(t, err)

	token, err := service.IssueToken(7)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_MissingUserID(t *testing.T) {
	service, err := createTestTokenService(time.Hour)
	require.NoError(t, err)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti": "abc",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "test-issuer",
		"aud": "test-audience",
	})
	token, err := raw.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	service, err := NewTokenService(time.Hour, "iss", "aud", true, string(privPEM), string(pubPEM), "")
	require.NoError(t, err)

	token, err := service.IssueToken(42)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	hmacService, err := NewTokenService(time.Hour, "iss", "aud", false, "", "", testSecret)
	require.NoError(t, err)
	_, err = hmacService.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
