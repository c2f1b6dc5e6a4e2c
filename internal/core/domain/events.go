package domain

import "time"

// UserRegisteredEvent represents the payload for eventlink.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	FullName     string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// PasswordResetRequestedEvent represents the payload for
// eventlink.user.password.reset_requested messages. Destination carries only
// the masked email; the raw address never leaves the service through the bus.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestID         string
	RequestedAt       time.Time
	MaskedDestination string
	IPAddress         *string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// PasswordChangedEvent represents the payload for eventlink.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID              string
	UserID               string
	ChangedAt            time.Time
	Method               string
	RefreshTokensRevoked int
	Metadata             map[string]any
}

// SessionIssuedEvent represents the payload for eventlink.session.issued messages.
type SessionIssuedEvent struct {
	EventID   string
	UserID    string
	IssuedAt  time.Time
	IPAddress *string
	Metadata  map[string]any
}
