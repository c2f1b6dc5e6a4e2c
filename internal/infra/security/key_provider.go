package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrKeyNotFound indicates the requested kid has no key material.
var ErrKeyNotFound = errors.New("key not found")

// EphemeralKID names the generated development signing key.
const EphemeralKID = "ephemeral"

// KeyProvider defines the interface for providing RSA signing material.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	// SigningKID identifies the key new tokens are signed with.
	SigningKID() string
}

// FileKeyProvider reads PEM-encoded RSA keys from a directory. The filename
// without extension becomes the kid; the first private key found is the
// signing key.
type FileKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewFileKeyProvider loads every parseable key under keyDir.
func NewFileKeyProvider(keyDir string) (*FileKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		kid := strings.TrimSuffix(name, filepath.Ext(name))
		if err := provider.loadKeyFile(filepath.Join(keyDir, name), kid); err != nil {
			return nil, err
		}
	}
	if provider.signingKey == nil {
		return nil, errors.New("key directory contains no private signing key")
	}
	return provider, nil
}

// loadKeyFile parses one PEM file. Private keys become signing candidates,
// public keys verification material.
func (p *FileKeyProvider) loadKeyFile(path, kid string) error {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return fmt.Errorf("decode PEM block from %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		p.adoptPrivateKey(kid, key)
		return nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			p.adoptPrivateKey(kid, rsaKey)
			return nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		p.keys[kid] = key
		return nil
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			p.keys[kid] = rsaKey
			return nil
		}
	}
	return fmt.Errorf("parse key from file %s", path)
}

// adoptPrivateKey keeps the first private key as the signer and always
// exposes its public half for verification.
func (p *FileKeyProvider) adoptPrivateKey(kid string, key *rsa.PrivateKey) {
	if p.signingKey == nil {
		p.signingKey = key
		p.signingKID = kid
	}
	p.keys[kid] = &key.PublicKey
}

// GetSigningKey returns the private key for signing tokens.
func (p *FileKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *FileKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// SigningKID returns the kid of the active signing key.
func (p *FileKeyProvider) SigningKID() string {
	return p.signingKID
}

// ListVerificationKeys exposes all public keys for JWKS registration.
func (p *FileKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// EphemeralKeyProvider generates an in-memory RSA key at startup. Tokens
// signed with it do not survive a restart, which is acceptable only in
// development.
type EphemeralKeyProvider struct {
	key *rsa.PrivateKey
}

// NewEphemeralKeyProvider generates a fresh 2048-bit key.
func NewEphemeralKeyProvider() (*EphemeralKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return &EphemeralKeyProvider{key: key}, nil
}

// GetSigningKey returns the generated private key.
func (p *EphemeralKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

// GetVerificationKey returns the generated public key for the ephemeral kid.
func (p *EphemeralKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != EphemeralKID {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

// SigningKID returns the fixed ephemeral kid.
func (p *EphemeralKeyProvider) SigningKID() string {
	return EphemeralKID
}

// ListVerificationKeys exposes the single public key for JWKS registration.
func (p *EphemeralKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	return map[string]*rsa.PublicKey{EphemeralKID: &p.key.PublicKey}
}

// NewKeyProvider selects a provider for the environment. A populated key
// directory always wins; development falls back to an ephemeral key, while
// production refuses to start without persistent key material.
func NewKeyProvider(env, keyDir string) (KeyProvider, error) {
	if keyDir != "" {
		if _, err := os.Stat(keyDir); err == nil {
			return NewFileKeyProvider(keyDir)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat key directory: %w", err)
		}
	}

	if env == "production" {
		return nil, fmt.Errorf("jwt key directory %q not found; production requires persistent keys", keyDir)
	}

	return NewEphemeralKeyProvider()
}
