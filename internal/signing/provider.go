// Package signing loads the service's RSA key pair and publishes the public
// half as a JSON Web Key Set. The private key is used only for signing and
// never crosses the package boundary in serialized form.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
)

var (
	ErrNoPEMData   = errors.New("no PEM data found in key file")
	ErrNotRSAKey   = errors.New("key material is not an RSA key")
	ErrKeyMismatch = errors.New("public key does not match private key")
)

// JWK is a single RSA public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the published key set document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeyProvider holds one asymmetric key pair. Construction fails when key
// material is missing or malformed; callers treat that as a startup-time
// fatal condition.
type KeyProvider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyID      string
}

// NewKeyProvider reads PEM-encoded RSA keys from the given paths. The key id
// is derived from a hash of the issuer name, so it stays stable across
// restarts and key file moves.
func NewKeyProvider(privateKeyPath, publicKeyPath, issuer string) (*KeyProvider, error) {
	privateKey, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	publicKey, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}

	if publicKey.N.Cmp(privateKey.N) != 0 || publicKey.E != privateKey.E {
		return nil, ErrKeyMismatch
	}

	return &KeyProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyID:      deriveKeyID(issuer),
	}, nil
}

// Sign returns the RSASSA-PKCS1-v1.5 signature over the SHA-256 digest of data.
func (p *KeyProvider) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, p.privateKey, crypto.SHA256, digest[:])
}

// KeyID returns the stable identifier published with every token and JWK.
func (p *KeyProvider) KeyID() string {
	return p.keyID
}

// PublicKey returns the verification key.
func (p *KeyProvider) PublicKey() *rsa.PublicKey {
	return p.publicKey
}

// PublicJWK returns the public key as a single JSON Web Key.
func (p *KeyProvider) PublicJWK() JWK {
	return JWK{
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		Kid: p.keyID,
		N:   base64.RawURLEncoding.EncodeToString(p.publicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.publicKey.E)).Bytes()),
	}
}

// KeySet returns the single-entry JWKS document for stateless downstream
// verification.
func (p *KeyProvider) KeySet() JWKS {
	return JWKS{Keys: []JWK{p.PublicJWK()}}
}

func deriveKeyID(issuer string) string {
	sum := sha256.Sum256([]byte(issuer))
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEMBlock(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}

	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEMBlock(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}

	return key, nil
}

func readPEMBlock(path string) (*pem.Block, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, ErrNoPEMData
	}

	return block, nil
}
