// Package token produces and validates the compact signed access tokens
// issued to clients, and republishes the signing key set.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jirayus/identity-api/internal/security"
	"github.com/jirayus/identity-api/internal/signing"
)

var (
	ErrInvalidFormat = errors.New("token is not a valid compact JWS")
	ErrBadSignature  = errors.New("token signature verification failed")
	ErrBadIssuer     = errors.New("token issuer mismatch")
	ErrBadAudience   = errors.New("token audience mismatch")
	ErrExpired       = errors.New("token has expired")
)

// AccessClaims is the payload carried by every access token.
type AccessClaims struct {
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens with the key provider's RSA pair.
type Codec struct {
	keys      *signing.KeyProvider
	issuer    string
	audience  string
	accessTTL time.Duration
}

// NewCodec creates a Codec bound to one key provider and one issuer/audience
// configuration.
func NewCodec(keys *signing.KeyProvider, issuer, audience string, accessTTL time.Duration) Codec {
	return Codec{
		keys:      keys,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}
}

// IssueAccessToken mints a short-lived RS256 token bound to the given session.
// Every token carries a fresh random jti so a revocation list can be layered
// on later without changing the wire format.
func (c *Codec) IssueAccessToken(userID, email string, roles []string, sessionID string) (string, error) {
	jti, err := security.RandomToken(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := AccessClaims{
		Email:     email,
		Roles:     roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = c.keys.KeyID()

	signingString, err := tok.SigningString()
	if err != nil {
		return "", err
	}

	signature, err := c.keys.Sign([]byte(signingString))
	if err != nil {
		return "", err
	}

	return signingString + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify parses and validates an access token, returning its claims. Issuer
// and audience are enforced against the configured values on every call.
func (c *Codec) Verify(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return c.keys.PublicKey(), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	)
	if err != nil {
		return nil, mapVerifyError(err)
	}

	return claims, nil
}

// KeySet returns the JWKS document for the verification key.
func (c *Codec) KeySet() signing.JWKS {
	return c.keys.KeySet()
}

// mapVerifyError collapses jwt/v5 joined errors into the codec's taxonomy.
// Structural and signature failures take precedence over claim failures.
func mapVerifyError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrInvalidFormat
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrBadIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrBadAudience
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrExpired
	default:
		return err
	}
}
