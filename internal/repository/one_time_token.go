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

// OneTimeTokenRepository defines the interface for single-use token operations.
type OneTimeTokenRepository interface {
	// CreateToken persists a new one-time token row.
	CreateToken(ctx context.Context, token *model.OneTimeToken) (*model.OneTimeToken, error)

	// GetTokenByHash retrieves a token by its keyed secret hash and purpose.
	GetTokenByHash(ctx context.Context, tokenHash string, purpose model.TokenPurpose) (*model.OneTimeToken, error)

	// ConsumeToken atomically sets consumed_at if and only if it is unset. It
	// reports whether this caller consumed the token, so concurrent consumers
	// yield exactly one success.
	ConsumeToken(ctx context.Context, id bson.ObjectID, consumedAt time.Time) (bool, error)
}

const oneTimeTokenCollection = "one_time_tokens"

type oneTimeTokenMongoRepository struct {
	db *mongo.Database
}

// NewOneTimeTokenMongoRepository creates a new MongoDB repository for one-time tokens.
func NewOneTimeTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) OneTimeTokenRepository {
	collection := db.Collection(oneTimeTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create one-time token indexes")
	}

	return &oneTimeTokenMongoRepository{db: db}
}

func (r *oneTimeTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.OneTimeToken,
) (*model.OneTimeToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(oneTimeTokenCollection).InsertOne(ctx, token)
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

func (r *oneTimeTokenMongoRepository) GetTokenByHash(
	ctx context.Context,
	tokenHash string,
	purpose model.TokenPurpose,
) (*model.OneTimeToken, error) {
	filter := bson.M{"token_hash": tokenHash, "purpose": purpose}

	var token model.OneTimeToken
	err := r.db.Collection(oneTimeTokenCollection).FindOne(ctx, filter).Decode(&token)
	if err != nil {
		return nil, err
	}

	return &token, nil
}

func (r *oneTimeTokenMongoRepository) ConsumeToken(
	ctx context.Context,
	id bson.ObjectID,
	consumedAt time.Time,
) (bool, error) {
	result, err := r.db.Collection(oneTimeTokenCollection).UpdateOne(
		ctx,
		bson.M{"_id": id, "consumed_at": nil},
		bson.M{"$set": bson.M{"consumed_at": consumedAt}},
	)
	if err != nil {
		return false, err
	}

	return result.ModifiedCount == 1, nil
}
