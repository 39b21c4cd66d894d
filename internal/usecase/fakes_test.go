package usecase_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/jirayus/identity-api/internal/mailer"
	"github.com/jirayus/identity-api/internal/model"
	"github.com/jirayus/identity-api/internal/repository"
	"github.com/jirayus/identity-api/internal/signing"
	"github.com/jirayus/identity-api/internal/token"
)

const (
	testIssuer   = "identity-api-test"
	testAudience = "identity-clients-test"
)

// newTestCodec generates a throwaway RSA pair on disk and builds a codec
// around it.
func newTestCodec(t *testing.T, accessTTL time.Duration) token.Codec {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	keys, err := signing.NewKeyProvider(privPath, pubPath, testIssuer)
	require.NoError(t, err)

	return token.NewCodec(keys, testIssuer, testAudience, accessTTL)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by uuid
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = bson.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.users[user.UUID] = &cp
	return user, nil
}

func (r *memUserRepo) GetUserByUUID(_ context.Context, uuid string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[uuid]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *user
	return &cp, nil
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memUserRepo) UpdateUser(
	_ context.Context,
	uuid string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[uuid]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.IsActive != nil {
		user.IsActive = *params.IsActive
	}
	if params.IsEmailVerified != nil {
		user.IsEmailVerified = *params.IsEmailVerified
	}
	user.UpdatedAt = time.Now()

	cp := *user
	return &cp, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session // keyed by session_id
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memSessionRepo) CreateSession(_ context.Context, session *model.Session) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session.ID = bson.NewObjectID()
	session.IsActive = true
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	cp := *session
	r.sessions[session.SessionID] = &cp
	return session, nil
}

func (r *memSessionRepo) GetSessionByID(_ context.Context, sessionID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *session
	return &cp, nil
}

func (r *memSessionRepo) DeactivateSession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[sessionID]; ok {
		session.IsActive = false
	}
	return nil
}

type memRefreshRepo struct {
	mu     sync.Mutex
	tokens map[bson.ObjectID]*model.RefreshToken
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{tokens: make(map[bson.ObjectID]*model.RefreshToken)}
}

func (r *memRefreshRepo) CreateToken(_ context.Context, tok *model.RefreshToken) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok.ID = bson.NewObjectID()
	tok.CreatedAt = time.Now()
	cp := *tok
	r.tokens[tok.ID] = &cp
	return tok, nil
}

func (r *memRefreshRepo) GetTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tok := range r.tokens {
		if tok.TokenHash == tokenHash {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memRefreshRepo) ClaimToken(_ context.Context, id bson.ObjectID, revokedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[id]
	if !ok || tok.RevokedAt != nil {
		return false, nil
	}
	tok.RevokedAt = &revokedAt
	return true, nil
}

func (r *memRefreshRepo) SetReplacedBy(_ context.Context, id, successorID bson.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tok, ok := r.tokens[id]; ok {
		tok.ReplacedBy = &successorID
	}
	return nil
}

func (r *memRefreshRepo) RevokeSessionTokens(_ context.Context, sessionID string, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, tok := range r.tokens {
		if tok.SessionID == sessionID && tok.RevokedAt == nil {
			ts := revokedAt
			tok.RevokedAt = &ts
			n++
		}
	}
	return n, nil
}

func (r *memRefreshRepo) RevokeUserTokens(_ context.Context, userID string, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, tok := range r.tokens {
		if tok.UserID == userID && tok.RevokedAt == nil {
			ts := revokedAt
			tok.RevokedAt = &ts
			n++
		}
	}
	return n, nil
}

type memOneTimeRepo struct {
	mu     sync.Mutex
	tokens map[bson.ObjectID]*model.OneTimeToken
}

func newMemOneTimeRepo() *memOneTimeRepo {
	return &memOneTimeRepo{tokens: make(map[bson.ObjectID]*model.OneTimeToken)}
}

func (r *memOneTimeRepo) CreateToken(_ context.Context, tok *model.OneTimeToken) (*model.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok.ID = bson.NewObjectID()
	tok.CreatedAt = time.Now()
	cp := *tok
	r.tokens[tok.ID] = &cp
	return tok, nil
}

func (r *memOneTimeRepo) GetTokenByHash(
	_ context.Context,
	tokenHash string,
	purpose model.TokenPurpose,
) (*model.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tok := range r.tokens {
		if tok.TokenHash == tokenHash && tok.Purpose == purpose {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memOneTimeRepo) ConsumeToken(_ context.Context, id bson.ObjectID, consumedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[id]
	if !ok || tok.ConsumedAt != nil {
		return false, nil
	}
	tok.ConsumedAt = &consumedAt
	return true, nil
}

type memOTPRepo struct {
	mu   sync.Mutex
	otps map[bson.ObjectID]*model.EmailOTP
}

func newMemOTPRepo() *memOTPRepo {
	return &memOTPRepo{otps: make(map[bson.ObjectID]*model.EmailOTP)}
}

func (r *memOTPRepo) CreateOTP(_ context.Context, otp *model.EmailOTP) (*model.EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	otp.ID = bson.NewObjectID()
	otp.CreatedAt = time.Now()
	cp := *otp
	r.otps[otp.ID] = &cp
	return otp, nil
}

func (r *memOTPRepo) GetLatestOTP(_ context.Context, userID string) (*model.EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *model.EmailOTP
	for _, otp := range r.otps {
		if otp.UserID != userID {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, mongo.ErrNoDocuments
	}
	cp := *latest
	return &cp, nil
}

func (r *memOTPRepo) GetLatestValidOTP(_ context.Context, userID string) (*model.EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var latest *model.EmailOTP
	for _, otp := range r.otps {
		if otp.UserID != userID || otp.IsVerified || !otp.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, mongo.ErrNoDocuments
	}
	cp := *latest
	return &cp, nil
}

func (r *memOTPRepo) IncrementAttempts(_ context.Context, id bson.ObjectID) (*model.EmailOTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	otp, ok := r.otps[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	otp.Attempts++
	cp := *otp
	return &cp, nil
}

func (r *memOTPRepo) MarkVerified(_ context.Context, id bson.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	otp, ok := r.otps[id]
	if !ok || otp.IsVerified {
		return false, nil
	}
	otp.IsVerified = true
	return true, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	emails []mailer.Email
}

func (n *fakeNotifier) Enqueue(email mailer.Email) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
}

func (n *fakeNotifier) sent() []mailer.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]mailer.Email(nil), n.emails...)
}

type fakeBreachChecker struct {
	breached bool
}

func (c *fakeBreachChecker) IsPwned(context.Context, string) bool {
	return c.breached
}
