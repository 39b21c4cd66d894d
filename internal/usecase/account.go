package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jirayus/identity-api/internal/config"
	"github.com/jirayus/identity-api/internal/mailer"
	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/security"
)

// AccountUsecase implements the registration, verification, login, and
// password management flows.
type AccountUsecase interface {
	Register(ctx context.Context, params RegisterParams) error
	VerifyEmail(ctx context.Context, email, code string, device model.DeviceInfo) (*TokenPair, error)
	VerifyEmailLink(ctx context.Context, rawToken string, device model.DeviceInfo) (*TokenPair, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string, device model.DeviceInfo) (*TokenPair, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Notifier submits an email for background delivery without blocking.
type Notifier interface {
	Enqueue(email mailer.Email)
}

// BreachChecker reports whether a password appears in a known data breach.
type BreachChecker interface {
	IsPwned(ctx context.Context, password string) bool
}

var (
	ErrUserAlreadyExists        = errors.New("user already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrEmailNotVerified         = errors.New("email is not verified")
	ErrAccountDisabled          = errors.New("account is disabled")
	ErrPasswordTooWeak          = errors.New("password must be at least 10 characters long")
	ErrPasswordBreached         = errors.New("password has appeared in a data breach")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	ErrResendCooldown           = errors.New("please wait before requesting another code")
)

const minPasswordLength = 10

type accountUsecase struct {
	userRepo repository.UserRepository
	sessions SessionUsecase
	otp      OTPUsecase
	oneTime  OneTimeTokenUsecase
	notifier Notifier
	breaches BreachChecker
	cfg      *config.Config
}

// NewAccountUsecase creates a new instance of AccountUsecase.
func NewAccountUsecase(
	userRepo repository.UserRepository,
	sessions SessionUsecase,
	otp OTPUsecase,
	oneTime OneTimeTokenUsecase,
	notifier Notifier,
	breaches BreachChecker,
	cfg *config.Config,
) AccountUsecase {
	return &accountUsecase{
		userRepo: userRepo,
		sessions: sessions,
		otp:      otp,
		oneTime:  oneTime,
		notifier: notifier,
		breaches: breaches,
		cfg:      cfg,
	}
}

func (u *accountUsecase) Register(ctx context.Context, params RegisterParams) error {
	email := normalizeEmail(params.Email)

	if _, err := u.userRepo.GetUserByEmail(ctx, email); err == nil {
		return ErrUserAlreadyExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	if err := u.validatePassword(ctx, params.Password); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return err
	}

	// Created inactive and unverified; activation happens on verification.
	user, err := u.userRepo.CreateUser(ctx, &model.User{
		UUID:            uuid.NewString(),
		Email:           email,
		FirstName:       params.FirstName,
		LastName:        params.LastName,
		PasswordHash:    passwordHash,
		IsActive:        false,
		IsEmailVerified: false,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserAlreadyExists
		}
		return err
	}

	return u.sendVerification(ctx, user)
}

func (u *accountUsecase) VerifyEmail(
	ctx context.Context,
	email, code string,
	device model.DeviceInfo,
) (*TokenPair, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Same failure as a wrong code, to avoid email enumeration.
			return nil, ErrNoValidCode
		}
		return nil, err
	}

	if err := u.otp.Verify(ctx, user, code); err != nil {
		return nil, err
	}

	return u.activateAndLogin(ctx, user, device)
}

func (u *accountUsecase) VerifyEmailLink(
	ctx context.Context,
	rawToken string,
	device model.DeviceInfo,
) (*TokenPair, error) {
	user, err := u.oneTime.Consume(ctx, rawToken, model.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	return u.activateAndLogin(ctx, user, device)
}

func (u *accountUsecase) ResendVerification(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Don't reveal whether the account exists.
			return nil
		}
		return err
	}

	if user.IsEmailVerified {
		return nil
	}

	lastIssued, err := u.otp.LastIssuedAt(ctx, user.UUID)
	if err != nil {
		return err
	}
	if lastIssued != nil && time.Since(*lastIssued) < u.cfg.OTP.ResendCooldown {
		return ErrResendCooldown
	}

	return u.sendVerification(ctx, user)
}

func (u *accountUsecase) Login(
	ctx context.Context,
	email, password string,
	device model.DeviceInfo,
) (*TokenPair, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if ok, err := security.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return u.sessions.Login(ctx, user, device)
}

func (u *accountUsecase) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := u.userRepo.GetUserByUUID(ctx, userID)
	if err != nil {
		return err
	}

	if ok, err := security.VerifyPassword(currentPassword, user.PasswordHash); err != nil {
		return err
	} else if !ok {
		return ErrCurrentPasswordIncorrect
	}

	if err := u.setPassword(ctx, user.UUID, newPassword); err != nil {
		return err
	}

	return u.sessions.RevokeAll(ctx, user.UUID)
}

func (u *accountUsecase) ForgotPassword(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Don't reveal whether the account exists.
			return nil
		}
		return err
	}

	if !user.IsActive {
		return nil
	}

	rawToken, err := u.oneTime.Issue(ctx, user, model.PurposeResetPassword, u.cfg.Token.OneTimeTokenTTL)
	if err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s?token=%s", u.cfg.App.PasswordResetURL, rawToken)
	u.notifier.Enqueue(mailer.Email{
		To:      user.Email,
		Subject: "Reset your password",
		HTMLBody: fmt.Sprintf(`
			<p>Hi,</p>
			<p>We received a request to reset the password for your account.</p>
			<p>If you made this request, click the link below to choose a new password:</p>

			<p><a href="%s">%s</a></p>

			<p>This link will expire in %s.</p>
			<p>If you did not request a password reset, you can safely ignore this email.</p>
		`, resetLink, resetLink, u.cfg.Token.OneTimeTokenTTL),
	})

	return nil
}

func (u *accountUsecase) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	// The token is spent before the password changes; a failure after this
	// point must not make the token reusable.
	user, err := u.oneTime.Consume(ctx, rawToken, model.PurposeResetPassword)
	if err != nil {
		return err
	}

	if !user.IsActive {
		return ErrAccountDisabled
	}

	if err := u.setPassword(ctx, user.UUID, newPassword); err != nil {
		return err
	}

	return u.sessions.RevokeAll(ctx, user.UUID)
}

func (u *accountUsecase) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return u.userRepo.GetUserByUUID(ctx, userID)
}

func (u *accountUsecase) activateAndLogin(
	ctx context.Context,
	user *model.User,
	device model.DeviceInfo,
) (*TokenPair, error) {
	active := true
	verified := true
	user, err := u.userRepo.UpdateUser(ctx, user.UUID, repository.UpdateUserParams{
		IsActive:        &active,
		IsEmailVerified: &verified,
	})
	if err != nil {
		return nil, err
	}

	return u.sessions.Login(ctx, user, device)
}

func (u *accountUsecase) sendVerification(ctx context.Context, user *model.User) error {
	code, err := u.otp.Issue(ctx, user)
	if err != nil {
		return err
	}

	linkToken, err := u.oneTime.Issue(ctx, user, model.PurposeVerifyEmail, u.cfg.Token.OneTimeTokenTTL)
	if err != nil {
		return err
	}

	verifyLink := fmt.Sprintf("%s?token=%s", u.cfg.App.VerifyEmailURL, linkToken)
	u.notifier.Enqueue(mailer.Email{
		To:      user.Email,
		Subject: "Verify your email",
		Body: fmt.Sprintf(
			"Your verification code is: %s\n\nOr verify directly using this link: %s\n",
			code, verifyLink,
		),
	})

	return nil
}

func (u *accountUsecase) setPassword(ctx context.Context, userID, newPassword string) error {
	if err := u.validatePassword(ctx, newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = u.userRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		PasswordHash: &passwordHash,
	})
	return err
}

func (u *accountUsecase) validatePassword(ctx context.Context, password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooWeak
	}

	if u.breaches.IsPwned(ctx, password) {
		return ErrPasswordBreached
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
