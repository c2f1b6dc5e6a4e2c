package port

import (
	"context"
	"time"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
)

// UserRepository persists accounts. Implementations must match emails
// case-insensitively so one address cannot register twice in different
// casings.
type UserRepository interface {
	// Create inserts a new account. Colliding with an existing email, in any
	// casing, reports the shared duplicate sentinel.
	Create(ctx context.Context, user domain.User) error

	// GetByID fetches one account by identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail fetches one account by address, matching case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdatePassword replaces the credential hash and records when it
	// changed. Updating an unknown id reports not-found.
	UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error
}
