package domain

import (
	"strings"
	"time"
)

// User is an EventLink account holder.
type User struct {
	ID                 string
	Email              string
	FullName           string
	PasswordHash       string
	PasswordAlgo       string
	CreatedAt          time.Time
	LastPasswordChange *time.Time
}

// NormalizeEmail canonicalizes an email address for lookup and storage.
// Matching is case-insensitive, so every caller must normalize before
// touching the store.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
