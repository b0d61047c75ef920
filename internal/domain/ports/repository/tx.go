package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories accept the same `tx` argument and MUST gracefully accept nil
// (non-transactional path against the pool). The concrete type of `tx` is
// infra-defined (pgx.Tx for Postgres).
//
// The pipeline leans on this for its central invariant: chunk and embedding
// writes are only ever finalized inside the same transaction that completes
// the owning job, so an expired or re-claimed job can never observe a
// half-written document.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
