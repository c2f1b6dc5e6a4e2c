package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/infra/config"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

func notExpected(method string) error {
	return fmt.Errorf("unexpected %s call", method)
}

type passwordResetUserRepoMock struct {
	byEmail map[string]domain.User
	byID    map[string]domain.User

	updatedID   string
	updatedHash string
	updatedAlgo string
	updatedAt   time.Time
}

func (m *passwordResetUserRepoMock) Create(context.Context, domain.User) error {
	return notExpected("Create")
}

func (m *passwordResetUserRepoMock) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (m *passwordResetUserRepoMock) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (m *passwordResetUserRepoMock) UpdatePassword(_ context.Context, id, hash, algo string, changedAt time.Time) error {
	m.updatedID, m.updatedHash, m.updatedAlgo, m.updatedAt = id, hash, algo, changedAt
	return nil
}

type passwordResetTokenRepoMock struct {
	mu             sync.Mutex
	storedToken    *domain.PasswordResetToken
	consumedID     string
	consumedAt     time.Time
	invalidatedFor string
	invalidated    int
	revokedFor     string
	revoked        int
	createErr      error
	getErr         error
	consumeErr     error
	invalidateErr  error
}

func (m *passwordResetTokenRepoMock) CreatePasswordReset(_ context.Context, token domain.PasswordResetToken) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := token
	m.storedToken = &copied
	return nil
}

func (m *passwordResetTokenRepoMock) GetPasswordResetByHash(_ context.Context, hash string) (*domain.PasswordResetToken, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storedToken == nil || m.storedToken.TokenHash != hash {
		return nil, repository.ErrNotFound
	}
	copied := *m.storedToken
	return &copied, nil
}

func (m *passwordResetTokenRepoMock) ConsumePasswordReset(_ context.Context, id string, usedAt time.Time) error {
	if m.consumeErr != nil {
		return m.consumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storedToken == nil || m.storedToken.ID != id || m.storedToken.UsedAt != nil {
		return repository.ErrNotFound
	}
	at := usedAt
	m.storedToken.UsedAt = &at
	m.consumedID = id
	m.consumedAt = usedAt
	return nil
}

func (m *passwordResetTokenRepoMock) InvalidatePasswordResets(_ context.Context, userID string, at time.Time) (int, error) {
	if m.invalidateErr != nil {
		return 0, m.invalidateErr
	}
	m.invalidatedFor = userID
	return m.invalidated, nil
}

func (m *passwordResetTokenRepoMock) DeleteExpiredPasswordResets(context.Context, time.Time) (int, error) {
	return 0, notExpected("DeleteExpiredPasswordResets")
}

func (m *passwordResetTokenRepoMock) CreateRefreshToken(context.Context, domain.RefreshToken) error {
	return notExpected("CreateRefreshToken")
}

func (m *passwordResetTokenRepoMock) GetRefreshTokenByHash(context.Context, string) (*domain.RefreshToken, error) {
	return nil, notExpected("GetRefreshTokenByHash")
}

func (m *passwordResetTokenRepoMock) MarkRefreshTokenUsed(context.Context, string, time.Time) error {
	return notExpected("MarkRefreshTokenUsed")
}

func (m *passwordResetTokenRepoMock) RevokeRefreshTokensForUser(_ context.Context, userID string, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedFor = userID
	return m.revoked, nil
}

func (m *passwordResetTokenRepoMock) DeleteExpiredRefreshTokens(context.Context, time.Time) (int, error) {
	return 0, notExpected("DeleteExpiredRefreshTokens")
}

type passThroughTransactor struct {
	users  port.UserRepository
	tokens port.TokenRepository
}

func (t *passThroughTransactor) WithinTransaction(_ context.Context, fn func(port.UserRepository, port.TokenRepository) error) error {
	return fn(t.users, t.tokens)
}

type resetMailerMock struct {
	mu     sync.Mutex
	emails []string
	tokens []string
	err    error
}

func (m *resetMailerMock) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
	return m.err
}

type eventRecorderMock struct {
	mu              sync.Mutex
	registered      []domain.UserRegisteredEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	passwordChanged []domain.PasswordChangedEvent
	sessionIssued   []domain.SessionIssuedEvent
}

func (m *eventRecorderMock) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, event)
	return nil
}

func (m *eventRecorderMock) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetRequested = append(m.resetRequested, event)
	return nil
}

func (m *eventRecorderMock) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwordChanged = append(m.passwordChanged, event)
	return nil
}

func (m *eventRecorderMock) PublishSessionIssued(_ context.Context, event domain.SessionIssuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionIssued = append(m.sessionIssued, event)
	return nil
}

func newResetService(users *passwordResetUserRepoMock, tokens *passwordResetTokenRepoMock, mailer *resetMailerMock, events *eventRecorderMock) *PasswordResetService {
	transactor := &passThroughTransactor{users: users, tokens: tokens}
	var m port.ResetMailer
	if mailer != nil {
		m = mailer
	}
	return NewPasswordResetService(nil, users, tokens, transactor, nil, publisherOrNil(events), m, security.DefaultPasswordValidator(), nil)
}

func TestPasswordResetRequestKnownEmail(t *testing.T) {
	user := domain.User{ID: "user-1", Email: "person@example.com"}
	userRepo := &passwordResetUserRepoMock{
		byEmail: map[string]domain.User{"person@example.com": user},
		byID:    map[string]domain.User{user.ID: user},
	}
	tokenRepo := &passwordResetTokenRepoMock{invalidated: 2}
	mailer := &resetMailerMock{}
	events := &eventRecorderMock{}

	svc := newResetService(userRepo, tokenRepo, mailer, events)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })
	svc.WithTTL(30 * time.Minute)

	res, err := svc.RequestReset(context.Background(), PasswordResetRequestInput{Email: "Person@Example.com "})
	if err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}

	if res.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, res.UserID)
	}
	if res.Token == "" {
		t.Fatalf("expected raw token to be returned")
	}
	if tokenRepo.storedToken == nil {
		t.Fatalf("expected token to be stored")
	}
	if tokenRepo.storedToken.TokenHash != security.HashToken(res.Token) {
		t.Fatalf("stored hash does not match issued token")
	}
	if tokenRepo.storedToken.TokenHash == res.Token {
		t.Fatalf("raw token must never be persisted")
	}
	if !tokenRepo.storedToken.ExpiresAt.Equal(fixed.Add(30 * time.Minute)) {
		t.Fatalf("expected expires_at %v, got %v", fixed.Add(30*time.Minute), tokenRepo.storedToken.ExpiresAt)
	}
	if tokenRepo.invalidatedFor != user.ID {
		t.Fatalf("expected prior tokens invalidated for %s, got %q", user.ID, tokenRepo.invalidatedFor)
	}
	if len(mailer.emails) != 1 || mailer.emails[0] != user.Email {
		t.Fatalf("expected one mail to %s, got %v", user.Email, mailer.emails)
	}
	if mailer.tokens[0] != res.Token {
		t.Fatalf("mailer must receive the raw token")
	}
	if len(events.resetRequested) != 1 {
		t.Fatalf("expected one reset requested event, got %d", len(events.resetRequested))
	}
	event := events.resetRequested[0]
	if event.UserID != user.ID {
		t.Fatalf("event user id = %s, want %s", event.UserID, user.ID)
	}
	if event.MaskedDestination == user.Email {
		t.Fatalf("event must carry the masked address, got %s", event.MaskedDestination)
	}
	if event.RequestID != res.RequestID {
		t.Fatalf("event request id = %s, want %s", event.RequestID, res.RequestID)
	}
}

func TestPasswordResetRequestUnknownEmail(t *testing.T) {
	userRepo := &passwordResetUserRepoMock{byEmail: map[string]domain.User{}}
	tokenRepo := &passwordResetTokenRepoMock{}
	mailer := &resetMailerMock{}
	events := &eventRecorderMock{}

	svc := newResetService(userRepo, tokenRepo, mailer, events)

	res, err := svc.RequestReset(context.Background(), PasswordResetRequestInput{Email: "ghost@example.com"})
	if err != nil {
		t.Fatalf("unknown address must not error, got %v", err)
	}
	if res.RequestID == "" {
		t.Fatalf("expected request id even for unknown address")
	}
	if res.UserID != "" || res.Token != "" {
		t.Fatalf("unknown address must not yield a token, got %+v", res)
	}
	if tokenRepo.storedToken != nil {
		t.Fatalf("no token row may be written for unknown address")
	}
	if len(mailer.emails) != 0 {
		t.Fatalf("no mail may be sent for unknown address")
	}
	if len(events.resetRequested) != 0 {
		t.Fatalf("no event may be published for unknown address")
	}
}

func TestPasswordResetRequestEmptyEmail(t *testing.T) {
	userRepo := &passwordResetUserRepoMock{byEmail: map[string]domain.User{}}
	tokenRepo := &passwordResetTokenRepoMock{}
	mailer := &resetMailerMock{}

	svc := newResetService(userRepo, tokenRepo, mailer, nil)

	// Free-text input: whitespace can never match an account, and must get
	// the same acknowledgement instead of a validation error.
	res, err := svc.RequestReset(context.Background(), PasswordResetRequestInput{Email: "   "})
	if err != nil {
		t.Fatalf("empty address must not error, got %v", err)
	}
	if res.RequestID == "" {
		t.Fatalf("expected request id for empty address")
	}
	if res.UserID != "" || res.Token != "" {
		t.Fatalf("empty address must not yield a token, got %+v", res)
	}
	if len(mailer.emails) != 0 {
		t.Fatalf("no mail may be sent for empty address")
	}
}

func TestPasswordResetRequestRateLimited(t *testing.T) {
	user := domain.User{ID: "user-7", Email: "busy@example.com"}
	userRepo := &passwordResetUserRepoMock{
		byEmail: map[string]domain.User{"busy@example.com": user},
		byID:    map[string]domain.User{user.ID: user},
	}
	tokenRepo := &passwordResetTokenRepoMock{}
	store := newRateLimitStoreStub()

	cfg := &config.AppConfig{}
	cfg.RateLimit.PasswordResetMaxAttempts = 2
	cfg.RateLimit.WindowDuration = time.Minute

	transactor := &passThroughTransactor{users: userRepo, tokens: tokenRepo}
	svc := NewPasswordResetService(cfg, userRepo, tokenRepo, transactor, store, nil, nil, security.DefaultPasswordValidator(), nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.RequestReset(context.Background(), PasswordResetRequestInput{Email: "busy@example.com"}); err != nil {
			t.Fatalf("attempt %d should pass, got %v", i+1, err)
		}
	}

	_, err := svc.RequestReset(context.Background(), PasswordResetRequestInput{Email: "busy@example.com"})
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if rateErr.Scope != passwordResetRateLimitScope {
		t.Fatalf("expected scope %s, got %s", passwordResetRateLimitScope, rateErr.Scope)
	}
	if rateErr.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", rateErr.RetryAfter)
	}
}

func TestPasswordResetConfirmHappyPath(t *testing.T) {
	user := domain.User{ID: "user-4", Email: "person@example.com"}
	userRepo := &passwordResetUserRepoMock{byID: map[string]domain.User{user.ID: user}}
	tokenRepo := &passwordResetTokenRepoMock{revoked: 3}
	events := &eventRecorderMock{}

	svc := newResetService(userRepo, tokenRepo, nil, events)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	raw := "raw-reset-token"
	tokenRepo.storedToken = &domain.PasswordResetToken{
		ID:        "reset-1",
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		CreatedAt: fixed.Add(-5 * time.Minute),
		ExpiresAt: fixed.Add(25 * time.Minute),
	}

	res, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: raw, NewPassword: "Brandnew123"})
	if err != nil {
		t.Fatalf("ConfirmReset returned error: %v", err)
	}

	if res.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, res.UserID)
	}
	if res.TokensRevoked != 3 {
		t.Fatalf("expected 3 refresh tokens revoked, got %d", res.TokensRevoked)
	}
	if tokenRepo.consumedID != "reset-1" {
		t.Fatalf("expected token reset-1 consumed, got %q", tokenRepo.consumedID)
	}
	if userRepo.updatedID != user.ID {
		t.Fatalf("expected password update for %s, got %q", user.ID, userRepo.updatedID)
	}
	if userRepo.updatedAlgo != "argon2id" {
		t.Fatalf("expected argon2id algo, got %s", userRepo.updatedAlgo)
	}
	ok, err := security.VerifyPassword("Brandnew123", userRepo.updatedHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify against the new password (ok=%v err=%v)", ok, err)
	}
	if tokenRepo.revokedFor != user.ID {
		t.Fatalf("expected refresh revocation for %s, got %q", user.ID, tokenRepo.revokedFor)
	}
	if len(events.passwordChanged) != 1 {
		t.Fatalf("expected one password changed event, got %d", len(events.passwordChanged))
	}
	if events.passwordChanged[0].RefreshTokensRevoked != 3 {
		t.Fatalf("event revoked count = %d, want 3", events.passwordChanged[0].RefreshTokensRevoked)
	}
}

func TestPasswordResetConfirmUnknownToken(t *testing.T) {
	userRepo := &passwordResetUserRepoMock{}
	tokenRepo := &passwordResetTokenRepoMock{}

	svc := newResetService(userRepo, tokenRepo, nil, nil)

	_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: "missing", NewPassword: "Brandnew123"})
	if !errors.Is(err, ErrPasswordResetTokenInvalid) {
		t.Fatalf("expected ErrPasswordResetTokenInvalid, got %v", err)
	}
}

func TestPasswordResetConfirmUsedToken(t *testing.T) {
	user := domain.User{ID: "user-5"}
	userRepo := &passwordResetUserRepoMock{byID: map[string]domain.User{user.ID: user}}
	tokenRepo := &passwordResetTokenRepoMock{}

	svc := newResetService(userRepo, tokenRepo, nil, nil)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	raw := "already-used"
	used := fixed.Add(-time.Minute)
	tokenRepo.storedToken = &domain.PasswordResetToken{
		ID:        "reset-2",
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: fixed.Add(10 * time.Minute),
		UsedAt:    &used,
	}

	_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: raw, NewPassword: "Brandnew123"})
	if !errors.Is(err, ErrPasswordResetTokenUsed) {
		t.Fatalf("expected ErrPasswordResetTokenUsed, got %v", err)
	}
	if userRepo.updatedID != "" {
		t.Fatalf("used token must not change the password")
	}
}

func TestPasswordResetConfirmExpiredToken(t *testing.T) {
	user := domain.User{ID: "user-6"}
	userRepo := &passwordResetUserRepoMock{byID: map[string]domain.User{user.ID: user}}
	tokenRepo := &passwordResetTokenRepoMock{}

	svc := newResetService(userRepo, tokenRepo, nil, nil)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	raw := "stale-token"
	tokenRepo.storedToken = &domain.PasswordResetToken{
		ID:        "reset-3",
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: fixed.Add(-time.Second),
	}

	_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: raw, NewPassword: "Brandnew123"})
	if !errors.Is(err, ErrPasswordResetTokenExpired) {
		t.Fatalf("expected ErrPasswordResetTokenExpired, got %v", err)
	}
	if userRepo.updatedID != "" {
		t.Fatalf("expired token must not change the password")
	}
}

func TestPasswordResetConfirmWeakPassword(t *testing.T) {
	userRepo := &passwordResetUserRepoMock{}
	tokenRepo := &passwordResetTokenRepoMock{}

	svc := newResetService(userRepo, tokenRepo, nil, nil)

	_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: "anything", NewPassword: "short"})
	if !errors.Is(err, ErrNewPasswordInvalid) {
		t.Fatalf("expected ErrNewPasswordInvalid, got %v", err)
	}
}

func TestPasswordResetConfirmLostClaim(t *testing.T) {
	user := domain.User{ID: "user-8"}
	userRepo := &passwordResetUserRepoMock{byID: map[string]domain.User{user.ID: user}}
	tokenRepo := &passwordResetTokenRepoMock{consumeErr: repository.ErrNotFound}

	svc := newResetService(userRepo, tokenRepo, nil, nil)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	raw := "contested"
	tokenRepo.storedToken = &domain.PasswordResetToken{
		ID:        "reset-4",
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: fixed.Add(10 * time.Minute),
	}

	_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: raw, NewPassword: "Brandnew123"})
	if !errors.Is(err, ErrPasswordResetTokenUsed) {
		t.Fatalf("expected ErrPasswordResetTokenUsed when the claim is lost, got %v", err)
	}
	if userRepo.updatedID != "" {
		t.Fatalf("losing the claim must leave the password untouched")
	}
}

// Twenty goroutines race to confirm the same token; the conditional
// consumption must admit exactly one.
func TestPasswordResetConfirmSingleWinner(t *testing.T) {
	user := domain.User{ID: "user-9", Email: "raced@example.com"}
	userRepo := &passwordResetUserRepoMock{byID: map[string]domain.User{user.ID: user}}
	tokenRepo := &passwordResetTokenRepoMock{}

	svc := newResetService(userRepo, tokenRepo, nil, nil)
	fixed := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	raw := "contended-token"
	tokenRepo.storedToken = &domain.PasswordResetToken{
		ID:        "reset-5",
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: fixed.Add(10 * time.Minute),
	}

	const attempts = 20
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			_, err := svc.ConfirmReset(context.Background(), PasswordResetConfirmInput{Token: raw, NewPassword: "Brandnew123"})
			results <- err
		}()
	}

	start.Done()
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrPasswordResetTokenUsed):
			losses++
		default:
			t.Fatalf("unexpected error from concurrent confirm: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if losses != attempts-1 {
		t.Fatalf("expected %d losers observing the consumed token, got %d", attempts-1, losses)
	}
}

// rateLimitStoreStub keeps attempts in memory for rate-limit tests.
type rateLimitStoreStub struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newRateLimitStoreStub() *rateLimitStoreStub {
	return &rateLimitStoreStub{attempts: make(map[string][]time.Time)}
}

func (s *rateLimitStoreStub) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *rateLimitStoreStub) CountAttempts(_ context.Context, identifier string, _ time.Duration, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts[identifier]), nil
}

func (s *rateLimitStoreStub) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *rateLimitStoreStub) OldestAttempt(_ context.Context, identifier string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attempts[identifier]) == 0 {
		return time.Time{}, false, nil
	}
	return s.attempts[identifier][0], true, nil
}
