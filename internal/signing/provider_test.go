package signing_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirayus/identity-api/internal/signing"
)

func writeKeyPair(t *testing.T, key *rsa.PrivateKey) (privPath, pubPath string) {
	t.Helper()

	dir := t.TempDir()
	privPath = filepath.Join(dir, "private.pem")
	pubPath = filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func TestKeyProviderSign(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPath, pubPath := writeKeyPair(t, key)

	provider, err := signing.NewKeyProvider(privPath, pubPath, "identity-api")
	require.NoError(t, err)

	data := []byte("header.payload")
	sig, err := provider.Sign(data)
	require.NoError(t, err)

	digest := sha256.Sum256(data)
	assert.NoError(t, rsa.VerifyPKCS1v15(provider.PublicKey(), crypto.SHA256, digest[:], sig))
}

func TestKeyProviderStableKeyID(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPath, pubPath := writeKeyPair(t, key)

	first, err := signing.NewKeyProvider(privPath, pubPath, "identity-api")
	require.NoError(t, err)
	second, err := signing.NewKeyProvider(privPath, pubPath, "identity-api")
	require.NoError(t, err)

	// The id is derived from the issuer, not the key material.
	assert.Equal(t, first.KeyID(), second.KeyID())
	require.NotEmpty(t, first.KeyID())

	other, err := signing.NewKeyProvider(privPath, pubPath, "another-issuer")
	require.NoError(t, err)
	assert.NotEqual(t, first.KeyID(), other.KeyID())
}

func TestKeyProviderPKCS8Key(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	_, err = signing.NewKeyProvider(privPath, pubPath, "identity-api")
	assert.NoError(t, err)
}

func TestKeyProviderMismatchedPair(t *testing.T) {
	keyA, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyB, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath, _ := writeKeyPair(t, keyA)
	_, pubPath := writeKeyPair(t, keyB)

	_, err = signing.NewKeyProvider(privPath, pubPath, "identity-api")
	assert.ErrorIs(t, err, signing.ErrKeyMismatch)
}

func TestKeyProviderBadKeyFiles(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, pubPath := writeKeyPair(t, key)

	t.Run("missing file", func(t *testing.T) {
		_, err := signing.NewKeyProvider("/nonexistent/private.pem", pubPath, "identity-api")
		assert.Error(t, err)
	})

	t.Run("not PEM", func(t *testing.T) {
		bogus := filepath.Join(t.TempDir(), "bogus.pem")
		require.NoError(t, os.WriteFile(bogus, []byte("not a key"), 0o600))

		_, err := signing.NewKeyProvider(bogus, pubPath, "identity-api")
		assert.ErrorIs(t, err, signing.ErrNoPEMData)
	})

	t.Run("not RSA", func(t *testing.T) {
		ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		ecDER, err := x509.MarshalPKCS8PrivateKey(ecKey)
		require.NoError(t, err)
		ecPath := filepath.Join(t.TempDir(), "ec.pem")
		ecPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ecDER})
		require.NoError(t, os.WriteFile(ecPath, ecPEM, 0o600))

		_, err = signing.NewKeyProvider(ecPath, pubPath, "identity-api")
		assert.ErrorIs(t, err, signing.ErrNotRSAKey)
	})
}

func TestKeyProviderPublicJWK(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPath, pubPath := writeKeyPair(t, key)

	provider, err := signing.NewKeyProvider(privPath, pubPath, "identity-api")
	require.NoError(t, err)

	jwk := provider.PublicJWK()
	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "RS256", jwk.Alg)
	assert.Equal(t, "sig", jwk.Use)
	assert.Equal(t, provider.KeyID(), jwk.Kid)
	assert.NotEmpty(t, jwk.N)
	assert.Equal(t, "AQAB", jwk.E)
}
