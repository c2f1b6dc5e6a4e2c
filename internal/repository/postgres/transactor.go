package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prekzursil/event-link-sub001/internal/core/port"
)

// Transactor runs a unit of work against transaction-scoped repositories.
// Commit and rollback stay here so use cases never touch pgx directly.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor wires a transactor on top of the shared pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTransaction begins a transaction, hands fn repositories bound to it,
// and commits on success or rolls back on error. Panics roll back and are
// rethrown.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(users port.UserRepository, tokens port.TokenRepository) error) (err error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()

	err = fn(NewUserRepository(tx), NewTokenRepository(tx))
	return err
}

var _ port.Transactor = (*Transactor)(nil)
