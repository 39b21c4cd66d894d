package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MaxOTPAttempts bounds how many wrong codes may be submitted against one
// outstanding verification code before it is locked.
const MaxOTPAttempts = 3

// EmailOTP represents a short numeric verification code sent during
// registration. Only a keyed hash of the code is persisted.
type EmailOTP struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"user_id"`
	CodeHash   string        `bson:"code_hash"`
	CreatedAt  time.Time     `bson:"created_at"`
	ExpiresAt  time.Time     `bson:"expires_at"`
	IsVerified bool          `bson:"is_verified"`
	Attempts   int           `bson:"attempts"`
}

// IsValid reports whether the code can still be attempted: unverified,
// unexpired, and under the attempt limit.
func (o *EmailOTP) IsValid() bool {
	return !o.IsVerified && time.Now().Before(o.ExpiresAt) && o.Attempts < MaxOTPAttempts
}
