package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// SecretHasher produces deterministic keyed hashes of opaque secrets so that
// tokens can be looked up by hash while a database read alone is not enough
// to forge one. The pepper is server-side configuration and never persisted.
type SecretHasher struct {
	pepper []byte
}

// NewSecretHasher creates a SecretHasher with the given pepper.
func NewSecretHasher(pepper string) SecretHasher {
	return SecretHasher{pepper: []byte(pepper)}
}

// Hash returns the hex-encoded HMAC-SHA256 of the raw secret.
func (h SecretHasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// RandomToken returns a URL-safe random token built from nbytes of entropy.
func RandomToken(nbytes int) (string, error) {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOTPCode returns a fixed-length numeric code drawn from crypto/rand.
func GenerateOTPCode(length int) (string, error) {
	var sb strings.Builder
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}

	return sb.String(), nil
}
