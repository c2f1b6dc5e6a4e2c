package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// minTokenBytes enforces at least 128 bits of entropy for opaque tokens.
const minTokenBytes = 16

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength < minTokenBytes {
		return "", fmt.Errorf("token length must be at least %d bytes", minTokenBytes)
	}
	buf := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value. Reset and
// refresh tokens are persisted only in this form.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TokenGenerator carries the signing key identity used for JWT issuance.
type TokenGenerator struct {
	keyProvider KeyProvider
	kid         string
}

// NewTokenGenerator validates the signing identity pair.
func NewTokenGenerator(keyProvider KeyProvider, kid string) (*TokenGenerator, error) {
	if keyProvider == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if kid == "" {
		return nil, fmt.Errorf("kid is required")
	}
	return &TokenGenerator{keyProvider: keyProvider, kid: kid}, nil
}

// GetKID reports which key id newly signed tokens carry.
func (t *TokenGenerator) GetKID() string {
	return t.kid
}
