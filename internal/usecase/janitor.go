package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Prekzursil/event-link-sub001/internal/core/port"
)

const (
	defaultJanitorInterval = time.Hour
	defaultJanitorRetained = 24 * time.Hour
)

// TokenJanitor deletes token rows whose validity window closed long enough
// ago. Consumed rows are kept until expiry plus the retention window so a
// disputed reset can still be traced.
type TokenJanitor struct {
	tokens   port.TokenRepository
	logger   *zap.Logger
	interval time.Duration
	retained time.Duration
	now      func() time.Time
}

// JanitorStats summarizes a single purge cycle.
type JanitorStats struct {
	RunAt                time.Time
	ResetTokensDeleted   int
	RefreshTokensDeleted int
}

// NewTokenJanitor constructs a TokenJanitor.
func NewTokenJanitor(tokens port.TokenRepository, log *zap.Logger, interval, retained time.Duration) *TokenJanitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	if retained < 0 {
		retained = defaultJanitorRetained
	}
	return &TokenJanitor{
		tokens:   tokens,
		logger:   log,
		interval: interval,
		retained: retained,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the janitor.
func (j *TokenJanitor) WithClock(clock func() time.Time) {
	if clock != nil {
		j.now = clock
	}
}

// Start launches the purge loop. The goroutine exits when ctx is cancelled.
func (j *TokenJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	j.logger.Info("token janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retained", j.retained))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats, err := j.RunOnce(ctx)
				if err != nil {
					j.logger.Error("token janitor cycle failed", zap.Error(err))
					continue
				}
				if stats.ResetTokensDeleted > 0 || stats.RefreshTokensDeleted > 0 {
					j.logger.Info("token janitor cycle completed",
						zap.Int("reset_tokens_deleted", stats.ResetTokensDeleted),
						zap.Int("refresh_tokens_deleted", stats.RefreshTokensDeleted))
				}
			case <-ctx.Done():
				j.logger.Info("token janitor stopped")
				return
			}
		}
	}()
}

// RunOnce executes a single purge cycle. Exposed so operators and tests can
// trigger a sweep without waiting for the ticker.
func (j *TokenJanitor) RunOnce(ctx context.Context) (JanitorStats, error) {
	now := j.now().UTC()
	cutoff := now.Add(-j.retained)
	stats := JanitorStats{RunAt: now}

	resets, err := j.tokens.DeleteExpiredPasswordResets(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("purge password reset tokens: %w", err)
	}
	stats.ResetTokensDeleted = resets

	refresh, err := j.tokens.DeleteExpiredRefreshTokens(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("purge refresh tokens: %w", err)
	}
	stats.RefreshTokensDeleted = refresh

	return stats, nil
}
