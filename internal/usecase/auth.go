package usecase

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

// Sentinel errors for the authentication flows. Handlers map these onto
// HTTP statuses; anything else is treated as an internal fault.
var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidRefreshToken     = errors.New("invalid refresh token")
	ErrExpiredRefreshToken     = errors.New("refresh token expired")
	ErrRefreshTokenUnavailable = errors.New("refresh token unavailable")
	ErrInvalidAccessToken      = errors.New("invalid access token")
	ErrExpiredAccessToken      = errors.New("access token expired")
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour

	// refreshTokenBytes is the entropy of a raw refresh token before
	// base64 encoding.
	refreshTokenBytes = 32
)

// AuthService authenticates credentials and manages the session token pair.
type AuthService struct {
	cfg            *config.AppConfig
	users          port.UserRepository
	tokens         port.TokenRepository
	events         port.EventPublisher
	tokenGenerator *security.TokenGenerator
	keyProvider    security.KeyProvider
	log            *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	tokens port.TokenRepository,
	events port.EventPublisher,
	tokenGenerator *security.TokenGenerator,
	keyProvider security.KeyProvider,
	log *zap.Logger,
) (*AuthService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		cfg:            cfg,
		users:          users,
		tokens:         tokens,
		events:         events,
		tokenGenerator: tokenGenerator,
		keyProvider:    keyProvider,
		log:            log,
	}, nil
}

// LoginInput captures the credentials and request context for authentication.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// Login validates credentials and issues a session pair.
//
// Unknown addresses and wrong passwords both map to ErrInvalidCredentials.
// The unknown-address path still runs a full Argon2id verification against a
// throwaway hash so the two failures cost the same wall-clock time.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Session, domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, domain.User{}, fmt.Errorf("email is required")
	}
	if input.Password == "" {
		return nil, domain.User{}, fmt.Errorf("password is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			security.DummyVerifyPassword(input.Password)
			return nil, domain.User{}, ErrInvalidCredentials
		}
		return nil, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domain.User{}, ErrInvalidCredentials
	}

	metadata := map[string]any{"source": "login"}
	if ua := strings.TrimSpace(input.UserAgent); ua != "" {
		metadata["user_agent"] = ua
	}
	if ip := strings.TrimSpace(input.IP); ip != "" {
		metadata["ip"] = ip
	}

	session, err := s.IssueSession(ctx, *user, metadata)
	if err != nil {
		return nil, domain.User{}, err
	}

	s.publishSessionIssuedEvent(ctx, user.ID, input.IP, metadata)

	sanitized := *user
	sanitized.PasswordHash = ""

	return session, sanitized, nil
}

// IssueSession mints an access/refresh pair for an already-authenticated user.
func (s *AuthService) IssueSession(ctx context.Context, user domain.User, metadata map[string]any) (*domain.Session, error) {
	accessToken, accessExpiresAt, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	refreshToken, record, err := s.IssueRefreshToken(ctx, user, metadata)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// IssueToken signs a short-lived RS256 access token for the user. The kid
// header names the signing key so verifiers can pick the matching JWKS entry.
func (s *AuthService) IssueToken(_ context.Context, user domain.User) (string, time.Time, error) {
	if user.ID == "" {
		return "", time.Time{}, fmt.Errorf("user id is required")
	}

	signingKey, err := s.keyProvider.GetSigningKey()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get signing key: %w", err)
	}

	var audience jwt.ClaimStrings
	if name := s.cfg.App.Name; name != "" {
		audience = jwt.ClaimStrings{name}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.accessTTL())
	claims := AccessTokenClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.App.Name,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.tokenGenerator.GetKID()

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature, issuer, audience, and lifetime, then
// returns the embedded claims. Expiry maps to ErrExpiredAccessToken; every
// other rejection collapses into ErrInvalidAccessToken so callers leak
// nothing about why a token failed.
func (s *AuthService) ParseAccessToken(raw string) (*AccessTokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("access token is required")
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, s.verificationKeyFor,
		jwt.WithIssuer(s.cfg.App.Name),
		jwt.WithAudience(s.cfg.App.Name),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredAccessToken
	case err != nil, parsed == nil, !parsed.Valid:
		return nil, ErrInvalidAccessToken
	}

	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// verificationKeyFor resolves the RSA public key named by the token's kid
// header, rejecting non-RSA signing methods before any key lookup.
func (s *AuthService) verificationKeyFor(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	kid, ok := t.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("kid header not found")
	}
	return s.keyProvider.GetVerificationKey(kid)
}

// AccessTokenClaims augments the registered claims with the account identifier.
type AccessTokenClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// IssueRefreshToken mints a raw refresh token, stores its hash, and returns
// both the raw value and the persisted record.
func (s *AuthService) IssueRefreshToken(ctx context.Context, user domain.User, metadata map[string]any) (string, *domain.RefreshToken, error) {
	if s.tokens == nil {
		return "", nil, ErrRefreshTokenUnavailable
	}
	if user.ID == "" {
		return "", nil, errors.New("user id is required")
	}

	raw, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL()),
		Metadata:  metadataCopy(metadata),
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return "", nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return raw, &record, nil
}

// RefreshAccessToken exchanges a refresh token for a new session pair.
//
// Rotation marks the presented token used before anything is issued. The
// conditional update admits exactly one caller per token; replays of an
// already-rotated token fail with ErrInvalidRefreshToken.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*domain.Session, domain.User, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.User{}, fmt.Errorf("refresh token is required")
	}
	if s.tokens == nil {
		return nil, domain.User{}, ErrRefreshTokenUnavailable
	}

	hash := security.HashToken(refreshToken)
	record, err := s.tokens.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.User{}, ErrInvalidRefreshToken
		}
		return nil, domain.User{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := time.Now().UTC()
	if record.IsRevoked() || record.IsUsed() {
		return nil, domain.User{}, ErrInvalidRefreshToken
	}
	if record.IsExpired(now) {
		return nil, domain.User{}, ErrExpiredRefreshToken
	}

	if err := s.tokens.MarkRefreshTokenUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.User{}, ErrInvalidRefreshToken
		}
		return nil, domain.User{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.User{}, ErrInvalidRefreshToken
		}
		return nil, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	metadata := map[string]any{
		"source":       "refresh",
		"rotated_from": record.ID,
	}
	session, err := s.IssueSession(ctx, *user, metadata)
	if err != nil {
		return nil, domain.User{}, err
	}

	s.publishSessionIssuedEvent(ctx, user.ID, "", metadata)

	sanitized := *user
	sanitized.PasswordHash = ""

	return session, sanitized, nil
}

func (s *AuthService) accessTTL() time.Duration {
	if ttl := s.cfg.JWT.AccessTokenTTL; ttl > 0 {
		return ttl
	}
	return defaultAccessTokenTTL
}

func (s *AuthService) refreshTTL() time.Duration {
	if ttl := s.cfg.JWT.RefreshTokenTTL; ttl > 0 {
		return ttl
	}
	return defaultRefreshTokenTTL
}

func (s *AuthService) publishSessionIssuedEvent(ctx context.Context, userID, ip string, metadata map[string]any) {
	if s.events == nil {
		return
	}

	event := domain.SessionIssuedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		IssuedAt:  time.Now().UTC(),
		IPAddress: trimToNil(ip),
		Metadata:  metadataCopy(metadata),
	}

	if err := s.events.PublishSessionIssued(ctx, event); err != nil {
		s.log.Warn("publish session issued event failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func metadataCopy(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
