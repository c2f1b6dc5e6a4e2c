package security

import (
	"encoding/base64"
	"testing"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("expected 32 bytes of entropy, got %d", len(raw))
	}

	other, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken failed: %v", err)
	}
	if token == other {
		t.Error("consecutive tokens should differ")
	}
}

func TestGenerateSecureTokenRejectsShortLength(t *testing.T) {
	if _, err := GenerateSecureToken(8); err == nil {
		t.Error("expected error for insufficient entropy")
	}
}

func TestHashToken(t *testing.T) {
	first := HashToken("some-opaque-token")
	second := HashToken("some-opaque-token")
	if first != second {
		t.Error("hashing the same token twice should be deterministic")
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(first))
	}
	if first == HashToken("another-token") {
		t.Error("different tokens should hash differently")
	}
}
