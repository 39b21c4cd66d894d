package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jirayus/identity-api/internal/model"
)

// EmailOTPRepository defines the interface for verification code operations.
type EmailOTPRepository interface {
	// CreateOTP persists a new verification code row.
	CreateOTP(ctx context.Context, otp *model.EmailOTP) (*model.EmailOTP, error)

	// GetLatestOTP returns the most recent code for a user, regardless of
	// state. Used for issuance cooldown checks.
	GetLatestOTP(ctx context.Context, userID string) (*model.EmailOTP, error)

	// GetLatestValidOTP returns the most recent unverified, unexpired code
	// for a user. Older outstanding codes are irrelevant once a newer one
	// exists.
	GetLatestValidOTP(ctx context.Context, userID string) (*model.EmailOTP, error)

	// IncrementAttempts atomically bumps the failed attempt counter and
	// returns the updated row.
	IncrementAttempts(ctx context.Context, id bson.ObjectID) (*model.EmailOTP, error)

	// MarkVerified atomically flips is_verified if and only if it is still
	// false. It reports whether this caller performed the flip.
	MarkVerified(ctx context.Context, id bson.ObjectID) (bool, error)
}

const emailOTPCollection = "email_otps"

type emailOTPMongoRepository struct {
	db *mongo.Database
}

// NewEmailOTPMongoRepository creates a new MongoDB repository for verification codes.
func NewEmailOTPMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) EmailOTPRepository {
	collection := db.Collection(emailOTPCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// Expired codes have no audit value; let Mongo reap them.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create email OTP indexes")
	}

	return &emailOTPMongoRepository{db: db}
}

func (r *emailOTPMongoRepository) CreateOTP(ctx context.Context, otp *model.EmailOTP) (*model.EmailOTP, error) {
	otp.CreatedAt = time.Now()

	result, err := r.db.Collection(emailOTPCollection).InsertOne(ctx, otp)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		otp.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return otp, nil
}

func (r *emailOTPMongoRepository) GetLatestOTP(ctx context.Context, userID string) (*model.EmailOTP, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp model.EmailOTP
	err := r.db.Collection(emailOTPCollection).FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&otp)
	if err != nil {
		return nil, err
	}

	return &otp, nil
}

func (r *emailOTPMongoRepository) GetLatestValidOTP(ctx context.Context, userID string) (*model.EmailOTP, error) {
	filter := bson.M{
		"user_id":     userID,
		"is_verified": false,
		"expires_at":  bson.M{"$gt": time.Now()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp model.EmailOTP
	err := r.db.Collection(emailOTPCollection).FindOne(ctx, filter, opts).Decode(&otp)
	if err != nil {
		return nil, err
	}

	return &otp, nil
}

func (r *emailOTPMongoRepository) IncrementAttempts(ctx context.Context, id bson.ObjectID) (*model.EmailOTP, error) {
	result := r.db.Collection(emailOTPCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var otp model.EmailOTP
	if err := result.Decode(&otp); err != nil {
		return nil, err
	}

	return &otp, nil
}

func (r *emailOTPMongoRepository) MarkVerified(ctx context.Context, id bson.ObjectID) (bool, error) {
	result, err := r.db.Collection(emailOTPCollection).UpdateOne(
		ctx,
		bson.M{"_id": id, "is_verified": false},
		bson.M{"$set": bson.M{"is_verified": true}},
	)
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}
