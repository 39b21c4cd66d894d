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

// RefreshTokenRepository defines the interface for refresh token operations.
// Rows are never deleted; revoked tokens stay behind as the replay-detection
// and audit trail.
type RefreshTokenRepository interface {
	// CreateToken persists a new refresh token row.
	CreateToken(ctx context.Context, token *model.RefreshToken) (*model.RefreshToken, error)

	// GetTokenByHash retrieves a token by the keyed hash of its secret.
	GetTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)

	// ClaimToken atomically marks the token revoked if and only if it is not
	// revoked yet. It reports whether this caller won the claim, so two
	// concurrent rotations of the same token can never both succeed.
	ClaimToken(ctx context.Context, id bson.ObjectID, revokedAt time.Time) (bool, error)

	// SetReplacedBy links a rotated token to its successor.
	SetReplacedBy(ctx context.Context, id, successorID bson.ObjectID) error

	// RevokeSessionTokens revokes every non-revoked token tied to a session.
	RevokeSessionTokens(ctx context.Context, sessionID string, revokedAt time.Time) (int64, error)

	// RevokeUserTokens revokes every non-revoked token owned by a user.
	RevokeUserTokens(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
}

const refreshTokenCollection = "refresh_tokens"

type refreshTokenMongoRepository struct {
	db *mongo.Database
}

// NewRefreshTokenMongoRepository creates a new MongoDB repository for refresh tokens.
func NewRefreshTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) RefreshTokenRepository {
	collection := db.Collection(refreshTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "family_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create refresh token indexes")
	}

	return &refreshTokenMongoRepository{db: db}
}

func (r *refreshTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.RefreshToken,
) (*model.RefreshToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(refreshTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return token, nil
}

func (r *refreshTokenMongoRepository) GetTokenByHash(
	ctx context.Context,
	tokenHash string,
) (*model.RefreshToken, error) {
	result := r.db.Collection(refreshTokenCollection).FindOne(ctx, bson.M{"token_hash": tokenHash})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var token model.RefreshToken
	if err := result.Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

func (r *refreshTokenMongoRepository) ClaimToken(
	ctx context.Context,
	id bson.ObjectID,
	revokedAt time.Time,
) (bool, error) {
	result, err := r.db.Collection(refreshTokenCollection).UpdateOne(
		ctx,
		bson.M{"_id": id, "revoked_at": nil},
		bson.M{"$set": bson.M{"revoked_at": revokedAt}},
	)
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}

func (r *refreshTokenMongoRepository) SetReplacedBy(ctx context.Context, id, successorID bson.ObjectID) error {
	_, err := r.db.Collection(refreshTokenCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"replaced_by": successorID}},
	)
	return err
}

func (r *refreshTokenMongoRepository) RevokeSessionTokens(
	ctx context.Context,
	sessionID string,
	revokedAt time.Time,
) (int64, error) {
	result, err := r.db.Collection(refreshTokenCollection).UpdateMany(
		ctx,
		bson.M{"session_id": sessionID, "revoked_at": nil},
		bson.M{"$set": bson.M{"revoked_at": revokedAt}},
	)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (r *refreshTokenMongoRepository) RevokeUserTokens(
	ctx context.Context,
	userID string,
	revokedAt time.Time,
) (int64, error) {
	result, err := r.db.Collection(refreshTokenCollection).UpdateMany(
		ctx,
		bson.M{"user_id": userID, "revoked_at": nil},
		bson.M{"$set": bson.M{"revoked_at": revokedAt}},
	)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}
