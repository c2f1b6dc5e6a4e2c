package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

// ErrUserNotFound indicates the requested account does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserService handles user profile reads.
type UserService struct {
	users port.UserRepository
}

// NewUserService constructs UserService.
func NewUserService(users port.UserRepository) *UserService {
	return &UserService{users: users}
}

// GetProfile returns the account behind an authenticated user id. The
// password hash is stripped before the profile leaves the service.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}
