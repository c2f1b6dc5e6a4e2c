package port

import "context"

// Transactor runs user and token repository operations inside a single
// database transaction. fn receives transaction-scoped repository handles;
// returning an error rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(users UserRepository, tokens TokenRepository) error) error
}
