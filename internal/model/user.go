package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents an account in the authentication system. UUID is the stable
// public identifier embedded into tokens; the Mongo ObjectID never leaves the
// repository layer.
type User struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	UUID            string        `bson:"uuid"`
	Email           string        `bson:"email"`
	FirstName       string        `bson:"first_name"`
	LastName        string        `bson:"last_name"`
	PasswordHash    string        `bson:"password_hash"`
	IsActive        bool          `bson:"is_active"`
	IsEmailVerified bool          `bson:"is_email_verified"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

// DeviceInfo captures the client device attributes recorded on sessions and
// refresh tokens.
type DeviceInfo struct {
	IPAddress *string
	UserAgent *string
}
