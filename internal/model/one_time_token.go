package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TokenPurpose discriminates what a one-time token may be consumed for.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

// Valid reports whether the purpose is a known variant.
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeVerifyEmail, PurposeResetPassword:
		return true
	}
	return false
}

// OneTimeToken represents a single-use secret bound to a purpose, delivered
// to the user as an email link. Only a keyed hash of the secret is persisted.
// Once ConsumedAt is set the token is permanently unusable.
type OneTimeToken struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	TokenHash  string        `bson:"token_hash"`
	Purpose    TokenPurpose  `bson:"purpose"`
	CreatedAt  time.Time     `bson:"created_at"`
	ExpiresAt  time.Time     `bson:"expires_at"`
	ConsumedAt *time.Time    `bson:"consumed_at"`
}

// IsExpired reports whether the token is past its expiry.
func (t *OneTimeToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsConsumed reports whether the token has already been used.
func (t *OneTimeToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}
