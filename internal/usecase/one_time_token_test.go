package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/security"
	"github.com/jirayus/identity-api/internal/usecase"
)

type oneTimeFixture struct {
	oneTime  usecase.OneTimeTokenUsecase
	userRepo *memUserRepo
	user     *model.User
}

func newOneTimeFixture(t *testing.T) *oneTimeFixture {
	t.Helper()

	userRepo := newMemUserRepo()
	user, err := userRepo.CreateUser(context.Background(), &model.User{
		UUID:  uuid.NewString(),
		Email: "bob@example.com",
	})
	require.NoError(t, err)

	return &oneTimeFixture{
		oneTime:  usecase.NewOneTimeTokenUsecase(newMemOneTimeRepo(), userRepo, security.NewSecretHasher("test-pepper")),
		userRepo: userRepo,
		user:     user,
	}
}

func TestOneTimeTokenConsume(t *testing.T) {
	f := newOneTimeFixture(t)
	ctx := context.Background()

	raw, err := f.oneTime.Issue(ctx, f.user, model.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	owner, err := f.oneTime.Consume(ctx, raw, model.PurposeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, f.user.UUID, owner.UUID)

	// Second consumption of the same token must fail.
	_, err = f.oneTime.Consume(ctx, raw, model.PurposeVerifyEmail)
	assert.ErrorIs(t, err, usecase.ErrOneTimeTokenUsed)
}

func TestOneTimeTokenPurposeBound(t *testing.T) {
	f := newOneTimeFixture(t)
	ctx := context.Background()

	raw, err := f.oneTime.Issue(ctx, f.user, model.PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	// A reset token cannot be spent as a verification token.
	_, err = f.oneTime.Consume(ctx, raw, model.PurposeVerifyEmail)
	assert.ErrorIs(t, err, usecase.ErrOneTimeTokenInvalid)

	_, err = f.oneTime.Consume(ctx, raw, model.PurposeResetPassword)
	assert.NoError(t, err)
}

func TestOneTimeTokenExpired(t *testing.T) {
	f := newOneTimeFixture(t)
	ctx := context.Background()

	raw, err := f.oneTime.Issue(ctx, f.user, model.PurposeVerifyEmail, -time.Minute)
	require.NoError(t, err)

	_, err = f.oneTime.Consume(ctx, raw, model.PurposeVerifyEmail)
	assert.ErrorIs(t, err, usecase.ErrOneTimeTokenExpired)
}

func TestOneTimeTokenUnknown(t *testing.T) {
	f := newOneTimeFixture(t)

	_, err := f.oneTime.Consume(context.Background(), "no-such-token", model.PurposeVerifyEmail)
	assert.ErrorIs(t, err, usecase.ErrOneTimeTokenInvalid)
}

func TestOneTimeTokenRejectsUnknownPurpose(t *testing.T) {
	f := newOneTimeFixture(t)

	_, err := f.oneTime.Issue(context.Background(), f.user, model.TokenPurpose("bogus"), time.Hour)
	assert.Error(t, err)
}

func TestOneTimeTokenOlderStaysValid(t *testing.T) {
	f := newOneTimeFixture(t)
	ctx := context.Background()

	first, err := f.oneTime.Issue(ctx, f.user, model.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)
	second, err := f.oneTime.Issue(ctx, f.user, model.PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	// Issuing again does not invalidate earlier links still in flight.
	_, err = f.oneTime.Consume(ctx, first, model.PurposeVerifyEmail)
	assert.NoError(t, err)
	_, err = f.oneTime.Consume(ctx, second, model.PurposeVerifyEmail)
	assert.NoError(t, err)
}
