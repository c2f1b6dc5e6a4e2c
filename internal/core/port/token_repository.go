package port

import (
	"context"
	"time"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
)

// TokenRepository manages password-reset and refresh token records.
type TokenRepository interface {
	CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error
	GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	// ConsumePasswordReset transitions used_at from NULL to usedAt. It returns
	// repository.ErrNotFound when the row is missing OR already consumed, which
	// makes it the single-winner gate for concurrent confirmations.
	ConsumePasswordReset(ctx context.Context, id string, usedAt time.Time) error
	// InvalidatePasswordResets marks every unused reset token of the user as
	// consumed and reports how many rows changed.
	InvalidatePasswordResets(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteExpiredPasswordResets(ctx context.Context, before time.Time) (int, error)

	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// MarkRefreshTokenUsed is the rotation gate; same conditional semantics as
	// ConsumePasswordReset.
	MarkRefreshTokenUsed(ctx context.Context, id string, usedAt time.Time) error
	RevokeRefreshTokensForUser(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int, error)
}
