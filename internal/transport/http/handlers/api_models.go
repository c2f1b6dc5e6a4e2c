package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/transport/http/middleware"
)

// ErrorResponse is the generic error payload. RequestID lets a caller quote
// the correlation id from support tickets back to the logs.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// NewErrorResponse builds an error payload carrying the request correlation id.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: middleware.GetRequestID(c),
	}
}

// UserPayload describes the account view returned by the API.
type UserPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionPayload carries the credential pair issued after authentication.
type SessionPayload struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int       `json:"expiresIn"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthLoginRequest defines the payload for the login endpoint.
type AuthLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthLoginResponse describes the response returned for a successful login.
type AuthLoginResponse struct {
	SessionPayload
	User UserPayload `json:"user"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// TokenRefreshResponse contains tokens issued by the refresh endpoint.
type TokenRefreshResponse struct {
	SessionPayload
	User *UserPayload `json:"user,omitempty"`
}

// RegistrationRequest defines the account registration payload.
type RegistrationRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"fullName" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegistrationResponse contains the created account and its first session.
type RegistrationResponse struct {
	User    UserPayload     `json:"user"`
	Session *SessionPayload `json:"session,omitempty"`
}

// PasswordResetRequest represents a password reset initiation payload. The
// email field is deliberately unvalidated: an address that cannot match any
// account is answered exactly like an unknown one.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetResponse acknowledges a reset request. The body is identical
// for known and unknown addresses.
type PasswordResetResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	// SECURITY: DevToken is ONLY exposed in development mode. In production
	// the token travels exclusively through the mail channel.
	DevToken *string `json:"devToken,omitempty"`
}

// PasswordResetConfirmRequest captures a password reset confirmation payload.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// PasswordResetConfirmResponse indicates that a password reset completed successfully.
type PasswordResetConfirmResponse struct {
	Message       string    `json:"message"`
	ChangedAt     time.Time `json:"changedAt"`
	RevokedTokens int       `json:"revokedTokens"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse reports the overall readiness verdict plus the outcome of
// each dependency probe.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// JWKSKey is one RSA public key in RFC 7517 form.
type JWKSKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse wraps the published verification keys.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// newUserPayload converts a domain user to its API representation.
func newUserPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
	}
}

// newSessionPayload converts the issued credential pair to its API shape.
// ExpiresIn counts seconds until access token expiry, mirroring OAuth2.
func newSessionPayload(session *domain.Session) SessionPayload {
	if session == nil {
		return SessionPayload{}
	}
	expiresIn := int(time.Until(session.AccessExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return SessionPayload{
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		RefreshExpiresAt: session.RefreshExpiresAt,
	}
}
