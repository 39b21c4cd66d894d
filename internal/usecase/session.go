package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/security"
	"github.com/jirayus/identity-api/internal/token"
)

// SessionUsecase manages login sessions and the refresh token rotation chain.
type SessionUsecase interface {
	// Login creates a new session and a fresh token family for the user.
	Login(ctx context.Context, user *model.User, device model.DeviceInfo) (*TokenPair, error)

	// Rotate exchanges a still-active refresh token for a new pair. Using a
	// revoked token is treated as theft and revokes the whole session chain.
	Rotate(ctx context.Context, rawToken string, device model.DeviceInfo) (*TokenPair, error)

	// Revoke invalidates one refresh token and its session. It is idempotent
	// and silent on unknown tokens so existence cannot be probed.
	Revoke(ctx context.Context, rawToken string) error

	// RevokeAll revokes every non-revoked refresh token owned by the user.
	RevokeAll(ctx context.Context, userID string) error
}

// TokenPair is the credential pair returned to clients. RefreshToken carries
// the raw secret, visible here exactly once.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrTokenReuseDetected   = errors.New("refresh token reuse detected")
)

const refreshSecretBytes = 32

type sessionUsecase struct {
	sessionRepo repository.SessionRepository
	refreshRepo repository.RefreshTokenRepository
	userRepo    repository.UserRepository
	codec       token.Codec
	hasher      security.SecretHasher
	refreshTTL  time.Duration
	logger      *zerolog.Logger
}

// NewSessionUsecase creates a new instance of SessionUsecase.
func NewSessionUsecase(
	sessionRepo repository.SessionRepository,
	refreshRepo repository.RefreshTokenRepository,
	userRepo repository.UserRepository,
	codec token.Codec,
	hasher security.SecretHasher,
	refreshTTL time.Duration,
	logger *zerolog.Logger,
) SessionUsecase {
	return &sessionUsecase{
		sessionRepo: sessionRepo,
		refreshRepo: refreshRepo,
		userRepo:    userRepo,
		codec:       codec,
		hasher:      hasher,
		refreshTTL:  refreshTTL,
		logger:      logger,
	}
}

func (u *sessionUsecase) Login(
	ctx context.Context,
	user *model.User,
	device model.DeviceInfo,
) (*TokenPair, error) {
	session, err := u.sessionRepo.CreateSession(ctx, &model.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UUID,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	rawRefresh, err := u.issueRefreshToken(ctx, user.UUID, session.SessionID, uuid.NewString(), device, nil)
	if err != nil {
		return nil, err
	}

	accessToken, err := u.codec.IssueAccessToken(user.UUID, user.Email, rolesFor(user), session.SessionID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: rawRefresh}, nil
}

func (u *sessionUsecase) Rotate(
	ctx context.Context,
	rawToken string,
	device model.DeviceInfo,
) (*TokenPair, error) {
	current, err := u.refreshRepo.GetTokenByHash(ctx, u.hasher.Hash(rawToken))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, err
	}

	if current.IsRevoked() {
		u.containReuse(ctx, current)
		return nil, ErrTokenReuseDetected
	}

	if current.IsExpired() {
		return nil, ErrRefreshTokenExpired
	}

	// First writer wins: the conditional update revokes the token only if it
	// is still unrevoked, so a concurrent rotation loses the claim and lands
	// in reuse handling.
	claimed, err := u.refreshRepo.ClaimToken(ctx, current.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		u.containReuse(ctx, current)
		return nil, ErrTokenReuseDetected
	}

	user, err := u.userRepo.GetUserByUUID(ctx, current.UserID)
	if err != nil {
		return nil, err
	}

	sessionID := current.SessionID
	if sessionID == "" {
		// Token predates session linkage: attach the rest of the chain to a
		// fresh session.
		session, err := u.sessionRepo.CreateSession(ctx, &model.Session{
			SessionID: uuid.NewString(),
			UserID:    user.UUID,
			IPAddress: device.IPAddress,
			UserAgent: device.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		sessionID = session.SessionID
	}

	rawRefresh, err := u.issueRefreshToken(ctx, user.UUID, sessionID, current.FamilyID, device, &current.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := u.codec.IssueAccessToken(user.UUID, user.Email, rolesFor(user), sessionID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: rawRefresh}, nil
}

func (u *sessionUsecase) Revoke(ctx context.Context, rawToken string) error {
	current, err := u.refreshRepo.GetTokenByHash(ctx, u.hasher.Hash(rawToken))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}

	if _, err := u.refreshRepo.ClaimToken(ctx, current.ID, time.Now()); err != nil {
		return err
	}

	if current.SessionID != "" {
		if err := u.sessionRepo.DeactivateSession(ctx, current.SessionID); err != nil {
			return err
		}
	}

	return nil
}

func (u *sessionUsecase) RevokeAll(ctx context.Context, userID string) error {
	_, err := u.refreshRepo.RevokeUserTokens(ctx, userID, time.Now())
	return err
}

// issueRefreshToken persists a new token row and returns the raw secret. The
// secret itself is never stored; predecessor links the new row as successor.
func (u *sessionUsecase) issueRefreshToken(
	ctx context.Context,
	userID, sessionID, familyID string,
	device model.DeviceInfo,
	predecessor *bson.ObjectID,
) (string, error) {
	raw, err := security.RandomToken(refreshSecretBytes)
	if err != nil {
		return "", err
	}

	created, err := u.refreshRepo.CreateToken(ctx, &model.RefreshToken{
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: u.hasher.Hash(raw),
		FamilyID:  familyID,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		ExpiresAt: time.Now().Add(u.refreshTTL),
	})
	if err != nil {
		return "", err
	}

	if predecessor != nil {
		if err := u.refreshRepo.SetReplacedBy(ctx, *predecessor, created.ID); err != nil {
			return "", err
		}
	}

	return raw, nil
}

// containReuse is the fail-closed response to a replayed token: everything
// descending from the same session is revoked. Tokens without a session link
// fall back to revoking all of the user's tokens.
func (u *sessionUsecase) containReuse(ctx context.Context, tok *model.RefreshToken) {
	now := time.Now()

	if tok.SessionID != "" {
		if err := u.sessionRepo.DeactivateSession(ctx, tok.SessionID); err != nil {
			u.logger.Error().Err(err).Str("session_id", tok.SessionID).Msg("failed to deactivate session on reuse")
		}
		if _, err := u.refreshRepo.RevokeSessionTokens(ctx, tok.SessionID, now); err != nil {
			u.logger.Error().Err(err).Str("session_id", tok.SessionID).Msg("failed to revoke session tokens on reuse")
		}
	} else {
		if _, err := u.refreshRepo.RevokeUserTokens(ctx, tok.UserID, now); err != nil {
			u.logger.Error().Err(err).Str("user_id", tok.UserID).Msg("failed to revoke user tokens on reuse")
		}
	}

	u.logger.Warn().
		Str("user_id", tok.UserID).
		Str("family_id", tok.FamilyID).
		Msg("refresh token reuse detected, revoked token chain")
}

// rolesFor returns the role claims carried in access tokens.
func rolesFor(user *model.User) []string {
	if user.IsActive {
		return []string{"user"}
	}
	return []string{}
}
