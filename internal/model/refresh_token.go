package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RefreshToken represents one long-lived opaque credential in a rotation
// chain. Only a keyed hash of the secret is persisted; the raw value is
// returned to the client exactly once. FamilyID groups every token descended
// from one login so an audit can reconstruct the chain. Rows are never
// deleted; revoked tokens remain as the replay-detection trail.
type RefreshToken struct {
	ID         bson.ObjectID  `bson:"_id,omitempty"`
	UserID     string         `bson:"user_id"`
	SessionID  string         `bson:"session_id"`
	TokenHash  string         `bson:"token_hash"`
	FamilyID   string         `bson:"family_id"`
	ReplacedBy *bson.ObjectID `bson:"replaced_by"`
	IPAddress  *string        `bson:"ip_address"`
	UserAgent  *string        `bson:"user_agent"`
	CreatedAt  time.Time      `bson:"created_at"`
	ExpiresAt  time.Time      `bson:"expires_at"`
	RevokedAt  *time.Time     `bson:"revoked_at"`
}

// IsExpired reports whether the token is past its expiry.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsRevoked reports whether the token has been rotated or revoked. Using a
// revoked token is treated as a reuse event.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}
