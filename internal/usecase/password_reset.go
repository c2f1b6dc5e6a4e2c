package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

const (
	defaultResetTTL        = time.Hour
	defaultResetTokenBytes = 32

	passwordResetRateLimitScope = "password_reset"
	passwordResetReason         = "password_reset"
)

var (
	// ErrPasswordResetUnavailable indicates the service is not properly configured.
	ErrPasswordResetUnavailable = errors.New("password reset service unavailable")
	// ErrPasswordResetTokenInvalid indicates the supplied reset token is unknown.
	ErrPasswordResetTokenInvalid = errors.New("password reset token invalid")
	// ErrPasswordResetTokenUsed indicates the supplied reset token was already consumed.
	ErrPasswordResetTokenUsed = errors.New("password reset token already used")
	// ErrPasswordResetTokenExpired indicates the supplied token is expired.
	ErrPasswordResetTokenExpired = errors.New("password reset token expired")
	// ErrNewPasswordInvalid indicates the replacement password fails policy checks.
	ErrNewPasswordInvalid = errors.New("new password does not meet requirements")
)

// PasswordResetService coordinates reset initiation and completion.
//
// Initiation reports the same outcome whether or not the address maps to an
// account, so responses cannot be used to probe which emails are registered.
type PasswordResetService struct {
	cfg               *config.AppConfig
	users             port.UserRepository
	tokens            port.TokenRepository
	transactor        port.Transactor
	rateLimits        port.RateLimitStore
	events            port.EventPublisher
	mailer            port.ResetMailer
	passwordValidator *security.PasswordValidator
	log               *zap.Logger
	now               func() time.Time
	resetTTL          time.Duration
	tokenBytes        int
}

// PasswordResetRequestInput encapsulates metadata for a password reset request.
type PasswordResetRequestInput struct {
	Email     string
	IP        string
	UserAgent string
}

// ResetInitiationResult describes the generated reset artifact. Token carries
// the raw secret; it is handed to the mailer and, outside production, echoed
// to the caller for test automation. UserID stays empty when the address is
// unknown.
type ResetInitiationResult struct {
	RequestID string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// PasswordResetConfirmInput carries the payload to finalize a password reset.
type PasswordResetConfirmInput struct {
	Token       string
	NewPassword string
	IP          string
	UserAgent   string
}

// PasswordResetConfirmResult describes the outcome of a confirmed reset.
type PasswordResetConfirmResult struct {
	UserID        string
	ChangedAt     time.Time
	TokensRevoked int
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(cfg *config.AppConfig, users port.UserRepository, tokens port.TokenRepository, transactor port.Transactor, rateLimits port.RateLimitStore, events port.EventPublisher, mailer port.ResetMailer, validator *security.PasswordValidator, log *zap.Logger) *PasswordResetService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	resetTTL := defaultResetTTL
	tokenBytes := defaultResetTokenBytes
	if cfg != nil {
		if cfg.Reset.TokenTTL > 0 {
			resetTTL = cfg.Reset.TokenTTL
		}
		if cfg.Reset.TokenBytes > 0 {
			tokenBytes = cfg.Reset.TokenBytes
		}
	}

	return &PasswordResetService{
		cfg:               cfg,
		users:             users,
		tokens:            tokens,
		transactor:        transactor,
		rateLimits:        rateLimits,
		events:            events,
		mailer:            mailer,
		passwordValidator: validator,
		log:               log,
		now:               time.Now,
		resetTTL:          resetTTL,
		tokenBytes:        tokenBytes,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTTL allows tests to override the default reset TTL.
func (s *PasswordResetService) WithTTL(ttl time.Duration) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
}

// RequestReset issues a fresh reset token for the account behind email.
//
// Unknown addresses return a result with an empty UserID and no error, so the
// transport layer can answer every request identically. Issuance invalidates
// any earlier unused tokens for the same account: only the newest link works.
func (s *PasswordResetService) RequestReset(ctx context.Context, input PasswordResetRequestInput) (*ResetInitiationResult, error) {
	if s.users == nil || s.tokens == nil {
		return nil, ErrPasswordResetUnavailable
	}

	requestID := uuid.NewString()

	// The address is free text. An empty value can never match an account, so
	// it gets the same acknowledgement as an unknown one, not a validation
	// error.
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		s.log.Info("password reset requested with unusable address",
			zap.String("request_id", requestID))
		return &ResetInitiationResult{RequestID: requestID}, nil
	}

	now := s.now().UTC()
	if err := s.enforceResetRateLimit(ctx, email, now); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Info("password reset requested for unknown address",
				zap.String("request_id", requestID),
				zap.String("email", logger.MaskEmail(email)))
			return &ResetInitiationResult{RequestID: requestID}, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	invalidated, err := s.tokens.InvalidatePasswordResets(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("invalidate prior reset tokens: %w", err)
	}
	if invalidated > 0 {
		s.log.Info("superseded prior reset tokens",
			zap.String("user_id", user.ID),
			zap.Int("count", invalidated))
	}

	raw, err := security.GenerateSecureToken(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := now.Add(s.resetTTL)
	record := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		IP:        trimToNil(input.IP),
		UserAgent: trimToNil(input.UserAgent),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.CreatePasswordReset(ctx, record); err != nil {
		return nil, fmt.Errorf("store password reset token: %w", err)
	}

	s.deliverResetToken(ctx, user.Email, raw)
	s.publishResetRequestedEvent(ctx, user, requestID, now, expiresAt, input.IP, input.UserAgent)

	return &ResetInitiationResult{
		RequestID: requestID,
		UserID:    user.ID,
		Token:     raw,
		ExpiresAt: expiresAt,
	}, nil
}

// ConfirmReset validates the raw token, replaces the password, and consumes
// the token, all inside one transaction.
//
// The used_at claim inside the transaction is the arbitration point: when the
// same token is confirmed concurrently, exactly one call commits and every
// other one fails with ErrPasswordResetTokenUsed.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, input PasswordResetConfirmInput) (*PasswordResetConfirmResult, error) {
	rawToken := strings.TrimSpace(input.Token)
	if rawToken == "" {
		return nil, fmt.Errorf("reset token is required")
	}
	newPassword := strings.TrimSpace(input.NewPassword)
	if newPassword == "" {
		return nil, fmt.Errorf("new password is required")
	}
	if s.users == nil || s.tokens == nil || s.transactor == nil {
		return nil, ErrPasswordResetUnavailable
	}

	if err := s.passwordValidator.Validate(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNewPasswordInvalid, err)
	}

	token, err := s.tokens.GetPasswordResetByHash(ctx, security.HashToken(rawToken))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrPasswordResetTokenInvalid
	case err != nil:
		return nil, fmt.Errorf("lookup password reset token: %w", err)
	}

	now := s.now().UTC()
	if token.IsUsed() {
		return nil, ErrPasswordResetTokenUsed
	}
	if token.IsExpired(now) {
		return nil, ErrPasswordResetTokenExpired
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var tokensRevoked int
	err = s.transactor.WithinTransaction(ctx, func(users port.UserRepository, tokens port.TokenRepository) error {
		// Claim first: if another confirmation already flipped used_at, the
		// conditional update reports ErrNotFound and the password write below
		// never happens.
		if err := tokens.ConsumePasswordReset(ctx, token.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPasswordResetTokenUsed
			}
			return fmt.Errorf("consume password reset token: %w", err)
		}

		if err := users.UpdatePassword(ctx, token.UserID, passwordHash, "argon2id", now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPasswordResetTokenInvalid
			}
			return fmt.Errorf("update password: %w", err)
		}

		revoked, err := tokens.RevokeRefreshTokensForUser(ctx, token.UserID, now)
		if err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		tokensRevoked = revoked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("password reset confirmed",
		zap.String("user_id", token.UserID),
		zap.Int("refresh_tokens_revoked", tokensRevoked))

	s.publishPasswordChangedEvent(ctx, token.UserID, now, tokensRevoked, input.IP, input.UserAgent)

	return &PasswordResetConfirmResult{
		UserID:        token.UserID,
		ChangedAt:     now,
		TokensRevoked: tokensRevoked,
	}, nil
}

func (s *PasswordResetService) deliverResetToken(ctx context.Context, email, raw string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendPasswordReset(ctx, email, raw); err != nil {
		// Delivery failures stay internal; the caller already got the
		// uniform acknowledgement.
		s.log.Warn("reset mail delivery failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err))
	}
}

// enforceResetRateLimit caps initiation attempts per normalized address. The
// store failing is not a reason to block recovery, so its errors log and pass.
func (s *PasswordResetService) enforceResetRateLimit(ctx context.Context, email string, now time.Time) error {
	if s.rateLimits == nil || s.cfg == nil {
		return nil
	}
	limit := s.cfg.RateLimit.PasswordResetMaxAttempts
	if limit <= 0 {
		return nil
	}
	window := s.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}
	key := passwordResetRateLimitScope + ":" + email

	if err := s.rateLimits.TrimWindow(ctx, key, window, now); err != nil {
		s.log.Warn("trim reset attempt window", zap.Error(err))
		return nil
	}
	count, err := s.rateLimits.CountAttempts(ctx, key, window, now)
	if err != nil {
		s.log.Warn("count reset attempts", zap.Error(err))
		return nil
	}
	if count < limit {
		if err := s.rateLimits.RecordAttempt(ctx, key, now); err != nil {
			s.log.Warn("record reset attempt", zap.Error(err))
		}
		return nil
	}

	return &RateLimitExceededError{
		Scope:      passwordResetRateLimitScope,
		RetryAfter: s.resetRetryAfter(ctx, key, window, now),
	}
}

// resetRetryAfter derives the wait hint from the oldest attempt still inside
// the window. Zero when the store cannot answer.
func (s *PasswordResetService) resetRetryAfter(ctx context.Context, key string, window time.Duration, now time.Time) time.Duration {
	oldest, ok, err := s.rateLimits.OldestAttempt(ctx, key, window, now)
	if err != nil {
		s.log.Warn("oldest reset attempt lookup", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	if wait := oldest.Add(window).Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func (s *PasswordResetService) publishResetRequestedEvent(ctx context.Context, user *domain.User, requestID string, requestedAt, expiresAt time.Time, ip, userAgent string) {
	if s.events == nil || user == nil {
		return
	}

	metadata := map[string]any{"request_id": requestID}
	if agent := strings.TrimSpace(userAgent); agent != "" {
		metadata["user_agent"] = agent
	}
	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestID:         requestID,
		RequestedAt:       requestedAt,
		MaskedDestination: logger.MaskEmail(user.Email),
		IPAddress:         trimToNil(ip),
		ExpiresAt:         expiresAt,
		Metadata:          metadata,
	}

	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.log.Warn("password reset requested event not published", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *PasswordResetService) publishPasswordChangedEvent(ctx context.Context, userID string, changedAt time.Time, tokensRevoked int, ip, userAgent string) {
	if s.events == nil {
		return
	}

	metadata := map[string]any{}
	if trimmed := strings.TrimSpace(ip); trimmed != "" {
		metadata["ip"] = trimmed
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		metadata["user_agent"] = ua
	}

	event := domain.PasswordChangedEvent{
		EventID:              uuid.NewString(),
		UserID:               userID,
		ChangedAt:            changedAt,
		Method:               passwordResetReason,
		RefreshTokensRevoked: tokensRevoked,
		Metadata:             metadataCopy(metadata),
	}

	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.log.Warn("password changed event not published", zap.String("user_id", userID), zap.Error(err))
	}
}

func trimToNil(value string) *string {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	return &value
}
