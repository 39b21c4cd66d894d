package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jirayus/identity-api/internal/model"
)

func TestTokenPurposeValid(t *testing.T) {
	assert.True(t, model.PurposeVerifyEmail.Valid())
	assert.True(t, model.PurposeResetPassword.Valid())
	assert.False(t, model.TokenPurpose("").Valid())
	assert.False(t, model.TokenPurpose("bogus").Valid())
}

func TestRefreshTokenState(t *testing.T) {
	now := time.Now()

	tok := &model.RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, tok.IsExpired())
	assert.False(t, tok.IsRevoked())

	tok.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, tok.IsExpired())

	tok.RevokedAt = &now
	assert.True(t, tok.IsRevoked())
}

func TestOneTimeTokenState(t *testing.T) {
	now := time.Now()

	tok := &model.OneTimeToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, tok.IsExpired())
	assert.False(t, tok.IsConsumed())

	tok.ExpiresAt = now.Add(-time.Minute)
	assert.True(t, tok.IsExpired())

	tok.ConsumedAt = &now
	assert.True(t, tok.IsConsumed())
}

func TestEmailOTPIsValid(t *testing.T) {
	now := time.Now()

	otp := &model.EmailOTP{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, otp.IsValid())

	otp.Attempts = model.MaxOTPAttempts
	assert.False(t, otp.IsValid())

	otp = &model.EmailOTP{ExpiresAt: now.Add(-time.Minute)}
	assert.False(t, otp.IsValid())

	otp = &model.EmailOTP{ExpiresAt: now.Add(time.Hour), IsVerified: true}
	assert.False(t, otp.IsValid())
}
