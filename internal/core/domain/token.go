package domain

import "time"

// PasswordResetToken is the persisted half of a single-use reset credential.
// Only the SHA-256 hash of the issued value is stored; the raw value exists
// solely in the delivery channel.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether at falls on or past the token deadline.
func (t PasswordResetToken) IsExpired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// IsUsed reports whether the token was already consumed.
func (t PasswordResetToken) IsUsed() bool {
	return t.UsedAt != nil
}

// Consume stamps the token as used and reports whether this call performed
// the transition. A false return means the token had been consumed before.
func (t *PasswordResetToken) Consume(at time.Time) bool {
	if t.IsUsed() {
		return false
	}
	used := at
	t.UsedAt = &used
	return true
}

// RefreshToken is a long-lived session credential. Rotation consumes the
// presented token and issues a replacement, so each value is redeemable once.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string

	IP        *string
	UserAgent *string
	Metadata  map[string]any

	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	RevokedAt *time.Time
}

// IsExpired reports whether at falls on or past the token deadline.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// IsUsed reports whether the token was already exchanged during rotation.
func (t RefreshToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsRevoked reports whether the token was invalidated ahead of its deadline,
// e.g. by a password change.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// MarkUsed stamps the token as exchanged and reports whether this call
// performed the transition.
func (t *RefreshToken) MarkUsed(at time.Time) bool {
	if t.IsUsed() {
		return false
	}
	used := at
	t.UsedAt = &used
	return true
}

// Revoke invalidates the token and reports whether this call performed the
// transition.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.IsRevoked() {
		return false
	}
	revoked := at
	t.RevokedAt = &revoked
	return true
}

// Session is the credential pair handed to a client after authentication.
// The caller owns storage; the service keeps no copy beyond the hashed
// refresh token row.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
