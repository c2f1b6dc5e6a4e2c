package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
)

// JWTManager publishes the verification keys for the tokens this service
// signs. Resource services read them from /.well-known/jwks.json and verify
// access tokens offline.
type JWTManager struct {
	KeyProvider KeyProvider

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// keyEnumerator is satisfied by providers that can list every verification
// key up front.
type keyEnumerator interface {
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// NewJWTManager collects the provider's verification keys for publication.
func NewJWTManager(provider KeyProvider) *JWTManager {
	mgr := &JWTManager{KeyProvider: provider, keys: make(map[string]*rsa.PublicKey)}
	if enumerator, ok := provider.(keyEnumerator); ok {
		for kid, key := range enumerator.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}
	return mgr
}

// RegisterPublicKey adds a key to the published set. Rotation registers the
// incoming key here before the signer starts using it, so caches warm up
// ahead of the first token carrying the new kid.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	switch {
	case kid == "":
		return fmt.Errorf("jwt: register key: empty kid")
	case key == nil:
		return fmt.Errorf("jwt: register key %s: nil key", kid)
	}

	m.mu.Lock()
	m.keys[kid] = key
	m.mu.Unlock()
	return nil
}

// jwk is one RFC 7517 key entry.
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS renders the registered keys as a JSON Web Key Set. Kids are sorted so
// consecutive renders are byte-stable and the handler's ETag holds steady.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kids := make([]string, 0, len(m.keys))
	for kid := range m.keys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := struct {
		Keys []jwk `json:"keys"`
	}{Keys: make([]jwk, 0, len(kids))}

	for _, kid := range kids {
		key := m.keys[kid]
		if key == nil {
			continue
		}
		set.Keys = append(set.Keys, jwk{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	return json.Marshal(set)
}
