package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseToken(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker(secretKey, tokenTTL)

	tests := []struct {
		name       string
		merchantID int64
	}{
		{name: "regular merchant", merchantID: 1234509876},
		{name: "small id", merchantID: 1},
		{name: "max int64", merchantID: 1<<63 - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.merchantID)
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.LessOrEqual(t, len(token), 64)
			assert.Regexp(t, `^[A-Za-z0-9_-]+$`, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.merchantID, claims.MerchantID)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute)

	validToken, err := maker.GenerateToken(42)
	require.NoError(t, err)

	expired, err := NewJWTMaker(secretKey, -time.Hour).GenerateToken(42)
	require.NoError(t, err)

	foreign, err := NewJWTMaker("wrong_secret_key", 15*time.Minute).GenerateToken(42)
	require.NoError(t, err)

	zeroMerchant, err := maker.GenerateToken(0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: foreign},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "other merchant", token: "1" + validToken},
		{name: "zero merchant", token: zeroMerchant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
