package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

const (
	resetTable   = "auth.password_reset_tokens"
	refreshTable = "auth.refresh_tokens"
)

var (
	resetColumns = []string{
		"id", "user_id", "token_hash", "ip", "user_agent",
		"created_at", "expires_at", "used_at",
	}
	refreshColumns = []string{
		"id", "user_id", "token_hash", "ip", "user_agent",
		"created_at", "expires_at", "used_at", "revoked_at", "metadata",
	}
)

// TokenRepository persists both credential kinds, reset and refresh, in the
// auth schema. The single-consumption guarantee lives in the SQL itself:
// updates are narrowed to rows not yet stamped, so under concurrent
// redemptions exactly one caller changes the row and the rest read zero
// affected rows.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.TokenRepository = (*TokenRepository)(nil)

// NewTokenRepository builds a repository on top of exec, which may be the
// shared pool or a transaction.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreatePasswordReset stores a freshly issued reset token row.
func (r *TokenRepository) CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert(resetTable).
		Columns(resetColumns...).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			textOrNull(token.IP),
			textOrNull(token.UserAgent),
			token.CreatedAt,
			token.ExpiresAt,
			timeOrNull(token.UsedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("compose reset insert: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

// GetPasswordResetByHash looks a reset token up by the hash of its raw value.
func (r *TokenRepository) GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.Select(resetColumns...).
		From(resetTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("compose reset select: %w", err)
	}

	return scanResetRow(r.exec.QueryRow(ctx, stmt, args...))
}

// ConsumePasswordReset stamps used_at on one unused token. Losers of a
// concurrent redemption race get repository.ErrNotFound.
func (r *TokenRepository) ConsumePasswordReset(ctx context.Context, id string, usedAt time.Time) error {
	return r.stampUsedByID(ctx, resetTable, id, usedAt)
}

// InvalidatePasswordResets consumes every outstanding reset token for the
// user, so only the most recently issued one stays redeemable.
func (r *TokenRepository) InvalidatePasswordResets(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.stampAllForUser(ctx, resetTable, "used_at", userID, at)
}

// DeleteExpiredPasswordResets drops reset rows whose window closed before
// the cutoff.
func (r *TokenRepository) DeleteExpiredPasswordResets(ctx context.Context, before time.Time) (int, error) {
	return r.purgeExpired(ctx, resetTable, before)
}

// CreateRefreshToken stores the hashed refresh credential for a session.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	meta, err := encodeMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("encode refresh token metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(refreshTable).
		Columns(refreshColumns...).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			textOrNull(token.IP),
			textOrNull(token.UserAgent),
			token.CreatedAt,
			token.ExpiresAt,
			timeOrNull(token.UsedAt),
			timeOrNull(token.RevokedAt),
			meta,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("compose refresh insert: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash looks a refresh token up by the hash of its raw value.
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshColumns...).
		From(refreshTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("compose refresh select: %w", err)
	}

	return scanRefreshRow(r.exec.QueryRow(ctx, stmt, args...))
}

// MarkRefreshTokenUsed stamps used_at on one unrotated token. Losers of a
// concurrent rotation race get repository.ErrNotFound.
func (r *TokenRepository) MarkRefreshTokenUsed(ctx context.Context, id string, usedAt time.Time) error {
	return r.stampUsedByID(ctx, refreshTable, id, usedAt)
}

// RevokeRefreshTokensForUser revokes every active refresh token the user
// holds and reports how many rows changed.
func (r *TokenRepository) RevokeRefreshTokensForUser(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.stampAllForUser(ctx, refreshTable, "revoked_at", userID, at)
}

// DeleteExpiredRefreshTokens drops refresh rows past their expiry.
func (r *TokenRepository) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int, error) {
	return r.purgeExpired(ctx, refreshTable, before)
}

// stampUsedByID is the shared compare-and-set: set used_at on the given row
// only while it is still NULL.
func (r *TokenRepository) stampUsedByID(ctx context.Context, table, id string, usedAt time.Time) error {
	stmt, args, err := r.builder.Update(table).
		Set("used_at", usedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("compose %s consume: %w", table, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume token in %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// stampAllForUser sets column on every row of the user where it is still
// NULL and returns the number of rows changed.
func (r *TokenRepository) stampAllForUser(ctx context.Context, table, column, userID string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update(table).
		Set(column, at.UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		Where(column + " IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("compose %s bulk stamp: %w", table, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("stamp %s for user: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *TokenRepository) purgeExpired(ctx context.Context, table string, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(table).
		Where(squirrel.Lt{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("compose %s purge: %w", table, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge expired rows from %s: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanResetRow(row pgx.Row) (*domain.PasswordResetToken, error) {
	var (
		token  domain.PasswordResetToken
		ip     sql.NullString
		agent  sql.NullString
		usedAt sql.NullTime
	)

	err := row.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &ip, &agent,
		&token.CreatedAt, &token.ExpiresAt, &usedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows):
		return nil, repository.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("scan reset row: %w", err)
	}

	token.IP = textPtr(ip)
	token.UserAgent = textPtr(agent)
	token.UsedAt = timePtr(usedAt)
	return &token, nil
}

func scanRefreshRow(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token     domain.RefreshToken
		ip        sql.NullString
		agent     sql.NullString
		usedAt    sql.NullTime
		revokedAt sql.NullTime
		payload   []byte
	)

	err := row.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &ip, &agent,
		&token.CreatedAt, &token.ExpiresAt, &usedAt, &revokedAt, &payload,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows):
		return nil, repository.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("scan refresh row: %w", err)
	}

	token.IP = textPtr(ip)
	token.UserAgent = textPtr(agent)
	token.UsedAt = timePtr(usedAt)
	token.RevokedAt = timePtr(revokedAt)

	meta, err := decodeMetadata(payload)
	if err != nil {
		return nil, err
	}
	token.Metadata = meta
	return &token, nil
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}

func decodeMetadata(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	meta := map[string]any{}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	return meta, nil
}

// textOrNull trims the value and maps nil or blank strings to SQL NULL.
func textOrNull(value *string) any {
	if value == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		return trimmed
	}
	return nil
}

func timeOrNull(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}

func textPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	if trimmed := strings.TrimSpace(value.String); trimmed != "" {
		return &trimmed
	}
	return nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	at := value.Time.UTC()
	return &at
}
