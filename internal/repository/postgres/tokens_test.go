package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

func TestTokenRepository_CreatePasswordReset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	ip := "203.0.113.9"
	ua := "GoTest/1.0"
	token := domain.PasswordResetToken{
		ID:        "reset-1",
		UserID:    "user-1",
		TokenHash: "aabbcc",
		IP:        &ip,
		UserAgent: &ua,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO auth\.password_reset_tokens`).
		WithArgs(
			token.ID,
			token.UserID,
			token.TokenHash,
			ip,
			ua,
			token.CreatedAt,
			token.ExpiresAt,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.CreatePasswordReset(context.Background(), token); err != nil {
		t.Fatalf("CreatePasswordReset returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetPasswordResetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token_hash", "ip", "user_agent", "created_at", "expires_at", "used_at",
	}).AddRow(
		"reset-1", "user-1", "aabbcc", "203.0.113.9", "GoTest/1.0", createdAt, expiresAt, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens`).
		WithArgs("aabbcc").
		WillReturnRows(rows)

	token, err := repo.GetPasswordResetByHash(context.Background(), "aabbcc")
	if err != nil {
		t.Fatalf("GetPasswordResetByHash returned error: %v", err)
	}
	if token.ID != "reset-1" || token.UserID != "user-1" {
		t.Fatalf("unexpected token row: %+v", token)
	}
	if token.UsedAt != nil {
		t.Fatalf("expected unused token")
	}
	if token.IP == nil || *token.IP != "203.0.113.9" {
		t.Fatalf("expected ip metadata populated")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_GetPasswordResetByHashNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "token_hash", "ip", "user_agent", "created_at", "expires_at", "used_at",
	})

	mock.ExpectQuery(`SELECT .*FROM auth\.password_reset_tokens`).
		WithArgs("unknown").
		WillReturnRows(rows)

	_, err = repo.GetPasswordResetByHash(context.Background(), "unknown")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_ConsumePasswordReset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	usedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used_at = \$1 WHERE id = \$2 AND used_at IS NULL`).
		WithArgs(usedAt, "reset-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ConsumePasswordReset(context.Background(), "reset-1", usedAt); err != nil {
		t.Fatalf("ConsumePasswordReset returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_ConsumePasswordResetAlreadyUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	usedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens`).
		WithArgs(usedAt, "reset-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.ConsumePasswordReset(context.Background(), "reset-1", usedAt)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for already consumed token, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_InvalidatePasswordResets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.password_reset_tokens SET used_at = \$1 WHERE user_id = \$2 AND used_at IS NULL`).
		WithArgs(at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.InvalidatePasswordResets(context.Background(), "user-1", at)
	if err != nil {
		t.Fatalf("InvalidatePasswordResets returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 invalidated tokens, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_DeleteExpiredPasswordResets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	before := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM auth\.password_reset_tokens WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	count, err := repo.DeleteExpiredPasswordResets(context.Background(), before)
	if err != nil {
		t.Fatalf("DeleteExpiredPasswordResets returned error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 deleted tokens, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_CreateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	createdAt := time.Now().UTC()
	token := domain.RefreshToken{
		ID:        "refresh-1",
		UserID:    "user-1",
		TokenHash: "ddeeff",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(720 * time.Hour),
		Metadata:  map[string]any{"client": "web"},
	}

	mock.ExpectExec(`INSERT INTO auth\.refresh_tokens`).
		WithArgs(
			token.ID,
			token.UserID,
			token.TokenHash,
			nil,
			nil,
			token.CreatedAt,
			token.ExpiresAt,
			nil,
			nil,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.CreateRefreshToken(context.Background(), token); err != nil {
		t.Fatalf("CreateRefreshToken returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_MarkRefreshTokenUsedAlreadyRotated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	usedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.refresh_tokens SET used_at = \$1 WHERE id = \$2 AND used_at IS NULL`).
		WithArgs(usedAt, "refresh-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.MarkRefreshTokenUsed(context.Background(), "refresh-1", usedAt)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for rotated token, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepository_RevokeRefreshTokensForUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewTokenRepository(mock)

	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.refresh_tokens SET revoked_at = \$1 WHERE user_id = \$2 AND revoked_at IS NULL`).
		WithArgs(at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	count, err := repo.RevokeRefreshTokensForUser(context.Background(), "user-1", at)
	if err != nil {
		t.Fatalf("RevokeRefreshTokensForUser returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 revoked tokens, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
