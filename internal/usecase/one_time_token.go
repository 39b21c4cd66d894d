package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/security"
)

// OneTimeTokenUsecase issues and consumes single-use, purpose-bound secrets
// delivered as email links.
type OneTimeTokenUsecase interface {
	// Issue creates a token and returns its raw value for embedding in a
	// link. Previously issued tokens for the same user and purpose stay
	// valid until their own expiry.
	Issue(ctx context.Context, user *model.User, purpose model.TokenPurpose, ttl time.Duration) (string, error)

	// Consume permanently spends the token and returns its owner. Exactly
	// one concurrent consumer succeeds.
	Consume(ctx context.Context, rawToken string, purpose model.TokenPurpose) (*model.User, error)
}

var (
	ErrOneTimeTokenInvalid = errors.New("one-time token is invalid")
	ErrOneTimeTokenUsed    = errors.New("one-time token has already been used")
	ErrOneTimeTokenExpired = errors.New("one-time token has expired")
)

const oneTimeSecretBytes = 32

type oneTimeTokenUsecase struct {
	tokenRepo repository.OneTimeTokenRepository
	userRepo  repository.UserRepository
	hasher    security.SecretHasher
}

// NewOneTimeTokenUsecase creates a new instance of OneTimeTokenUsecase.
func NewOneTimeTokenUsecase(
	tokenRepo repository.OneTimeTokenRepository,
	userRepo repository.UserRepository,
	hasher security.SecretHasher,
) OneTimeTokenUsecase {
	return &oneTimeTokenUsecase{
		tokenRepo: tokenRepo,
		userRepo:  userRepo,
		hasher:    hasher,
	}
}

func (u *oneTimeTokenUsecase) Issue(
	ctx context.Context,
	user *model.User,
	purpose model.TokenPurpose,
	ttl time.Duration,
) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	raw, err := security.RandomToken(oneTimeSecretBytes)
	if err != nil {
		return "", err
	}

	if _, err := u.tokenRepo.CreateToken(ctx, &model.OneTimeToken{
		UserID:    user.UUID,
		TokenHash: u.hasher.Hash(raw),
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}); err != nil {
		return "", err
	}

	return raw, nil
}

func (u *oneTimeTokenUsecase) Consume(
	ctx context.Context,
	rawToken string,
	purpose model.TokenPurpose,
) (*model.User, error) {
	tok, err := u.tokenRepo.GetTokenByHash(ctx, u.hasher.Hash(rawToken), purpose)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOneTimeTokenInvalid
		}
		return nil, err
	}

	if tok.IsConsumed() {
		return nil, ErrOneTimeTokenUsed
	}

	if tok.IsExpired() {
		return nil, ErrOneTimeTokenExpired
	}

	// Consumption is terminal: the conditional update commits before any
	// follow-up user mutation, so a failed follow-up can never leave a
	// reusable token behind. A lost race means someone else spent it.
	consumed, err := u.tokenRepo.ConsumeToken(ctx, tok.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrOneTimeTokenUsed
	}

	user, err := u.userRepo.GetUserByUUID(ctx, tok.UserID)
	if err != nil {
		return nil, err
	}

	return user, nil
}
