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
	"github.com/Prekzursil/event-link-sub001/internal/infra/logger"
	"github.com/Prekzursil/event-link-sub001/internal/infra/security"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

var (
	// ErrEmailTaken indicates another account already claimed the address.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
)

// RegistrationService handles new account onboarding.
type RegistrationService struct {
	users             port.UserRepository
	auth              *AuthService
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
	logger            *zap.Logger
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(users port.UserRepository, auth *AuthService, events port.EventPublisher, validator *security.PasswordValidator, log *zap.Logger) *RegistrationService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{users: users, auth: auth, events: events, passwordValidator: validator, logger: log}
}

// RegisterInput carries the payload for account creation.
type RegisterInput struct {
	Email     string
	FullName  string
	Password  string
	IP        string
	UserAgent string
}

// RegisterUser creates the account and signs the new user straight in.
//
// The unique index on the lowercased address is the arbiter for duplicate
// registrations; its violation surfaces here as ErrEmailTaken.
func (s *RegistrationService) RegisterUser(ctx context.Context, input RegisterInput) (domain.User, *domain.Session, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return domain.User{}, nil, fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, nil, fmt.Errorf("email is malformed")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return domain.User{}, nil, fmt.Errorf("full name is required")
	}
	password := strings.TrimSpace(input.Password)
	if password == "" {
		return domain.User{}, nil, fmt.Errorf("password is required")
	}

	if err := s.passwordValidator.Validate(password); err != nil {
		return domain.User{}, nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		PasswordAlgo: "argon2id",
		CreatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, nil, ErrEmailTaken
		}
		return domain.User{}, nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)))

	s.publishUserRegisteredEvent(ctx, user, now, input.IP, input.UserAgent)

	var session *domain.Session
	if s.auth != nil {
		metadata := map[string]any{"source": "registration"}
		if ua := strings.TrimSpace(input.UserAgent); ua != "" {
			metadata["user_agent"] = ua
		}
		session, err = s.auth.IssueSession(ctx, user, metadata)
		if err != nil {
			// The account exists; the client can still log in normally.
			s.logger.Warn("session issuance after registration failed",
				zap.String("user_id", user.ID),
				zap.Error(err))
			session = nil
		}
	}

	user.PasswordHash = ""
	return user, session, nil
}

func (s *RegistrationService) publishUserRegisteredEvent(ctx context.Context, user domain.User, registeredAt time.Time, ip, userAgent string) {
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

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        logger.MaskEmail(user.Email),
		FullName:     user.FullName,
		RegisteredAt: registeredAt,
		Metadata:     metadataCopy(metadata),
	}

	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}
