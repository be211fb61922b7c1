package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function inside a database transaction,
// passing the tx handle via the opaque `tx` argument. Keeps use-case
// interfaces free of storage types: repositories accept `tx Tx` and detect a
// transactional context implementation-side. Repositories MUST gracefully
// accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
