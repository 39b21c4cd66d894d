package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Session represents one logical login on a single device or browser instance.
// It is deactivated on logout and when refresh token reuse is detected.
type Session struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	SessionID string        `bson:"session_id"`
	UserID    string        `bson:"user_id"`
	IPAddress *string       `bson:"ip_address"`
	UserAgent *string       `bson:"user_agent"`
	IsActive  bool          `bson:"is_active"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
