package usecase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/security"
)

// OTPUsecase issues and verifies the short numeric codes used for
// registration email verification.
type OTPUsecase interface {
	// Issue generates a fresh code for the user and returns its plaintext
	// for delivery.
	Issue(ctx context.Context, user *model.User) (string, error)

	// Verify checks a submitted code against the latest outstanding one.
	Verify(ctx context.Context, user *model.User, code string) error

	// LastIssuedAt returns when the most recent code was created, for
	// issuance cooldown checks. Returns nil when no code exists.
	LastIssuedAt(ctx context.Context, userID string) (*time.Time, error)
}

var (
	ErrNoValidCode     = errors.New("no valid verification code")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrTooManyAttempts = errors.New("too many failed verification attempts")
)

const otpCodeLength = 6

type otpUsecase struct {
	otpRepo repository.EmailOTPRepository
	hasher  security.SecretHasher
	ttl     time.Duration
}

// NewOTPUsecase creates a new instance of OTPUsecase.
func NewOTPUsecase(
	otpRepo repository.EmailOTPRepository,
	hasher security.SecretHasher,
	ttl time.Duration,
) OTPUsecase {
	return &otpUsecase{
		otpRepo: otpRepo,
		hasher:  hasher,
		ttl:     ttl,
	}
}

func (u *otpUsecase) Issue(ctx context.Context, user *model.User) (string, error) {
	code, err := security.GenerateOTPCode(otpCodeLength)
	if err != nil {
		return "", err
	}

	if _, err := u.otpRepo.CreateOTP(ctx, &model.EmailOTP{
		UserID:    user.UUID,
		CodeHash:  u.hasher.Hash(code),
		ExpiresAt: time.Now().Add(u.ttl),
	}); err != nil {
		return "", err
	}

	return code, nil
}

func (u *otpUsecase) Verify(ctx context.Context, user *model.User, code string) error {
	// Latest-only policy: once a newer code exists, older outstanding codes
	// are no longer attemptable.
	otp, err := u.otpRepo.GetLatestValidOTP(ctx, user.UUID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNoValidCode
		}
		return err
	}

	if otp.Attempts >= model.MaxOTPAttempts {
		return ErrTooManyAttempts
	}

	if otp.CodeHash != u.hasher.Hash(code) {
		if _, err := u.otpRepo.IncrementAttempts(ctx, otp.ID); err != nil {
			return err
		}
		return ErrCodeMismatch
	}

	verified, err := u.otpRepo.MarkVerified(ctx, otp.ID)
	if err != nil {
		return err
	}
	if !verified {
		return ErrNoValidCode
	}

	return nil
}

func (u *otpUsecase) LastIssuedAt(ctx context.Context, userID string) (*time.Time, error) {
	otp, err := u.otpRepo.GetLatestOTP(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	return &otp.CreatedAt, nil
}
