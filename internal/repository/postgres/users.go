package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Prekzursil/event-link-sub001/internal/core/domain"
	"github.com/Prekzursil/event-link-sub001/internal/core/port"
	"github.com/Prekzursil/event-link-sub001/internal/repository"
)

const (
	usersTable = "auth.users"

	// uniqueViolation is the PostgreSQL error code raised when an insert
	// collides with a unique index.
	uniqueViolation = "23505"
)

var userColumns = []string{
	"id", "email", "full_name", "password_hash", "password_algo",
	"created_at", "last_password_change",
}

// UserRepository stores accounts in the auth schema. Email uniqueness is
// enforced by the database through a unique index on LOWER(email), not in
// application code.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository builds a repository on top of exec, which may be the
// shared pool or a transaction.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account row. A collision with the unique email index
// surfaces as repository.ErrDuplicate regardless of the casing stored.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.FullName,
			user.PasswordHash,
			user.PasswordAlgo,
			user.CreatedAt,
			timeOrNull(user.LastPasswordChange),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("compose user insert: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// GetByID fetches an account by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("compose user select: %w", err)
	}

	return scanUserRow(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail fetches an account by email. The comparison is case-insensitive
// so the lookup agrees with the unique index on LOWER(email).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Expr("LOWER(email) = LOWER(?)", email)).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("compose user select by email: %w", err)
	}

	return scanUserRow(r.exec.QueryRow(ctx, stmt, args...))
}

// UpdatePassword swaps the stored credential for the account and records
// when the change happened. Unknown ids surface as repository.ErrNotFound.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, passwordAlgo string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("password_algo", passwordAlgo).
		Set("last_password_change", changedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("compose password update: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		changedAt sql.NullTime
	)

	err := row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.PasswordAlgo, &user.CreatedAt, &changedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows):
		return nil, repository.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastPasswordChange = timePtr(changedAt)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
