package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sales-reports/internal/application/port"
)

type txKey struct{}

// Execer covers both *sql.DB and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB scopes repository statements to the transaction, if any, carried by a context
type DB struct {
	pool   *sql.DB
	logger *zap.Logger
}

// NewDB wraps an open pool
func NewDB(pool *sql.DB, logger *zap.Logger) *DB {
	return &DB{pool: pool, logger: logger}
}

// Executor returns the transaction carried by ctx, or the pool when there is none.
// Repositories must use it so their statements join WithTransaction.
func (db *DB) Executor(ctx context.Context) Execer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.pool
}

// WithTransaction implements port.TransactionManager.
// A nested call joins the enclosing transaction; fn's error or panic rolls it back.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*sql.Tx); nested {
		return fn(ctx)
	}

	tx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error("Rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

var _ port.TransactionManager = (*DB)(nil)
