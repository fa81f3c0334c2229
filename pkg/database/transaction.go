package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey string

const txStatusKey = txContextKey("txStatus")
const txKey = txContextKey("tx-context-key")

// Tx is the transaction surface repositories use. A Tx obtained from a
// context that already carries an open transaction joins it; Commit and
// Rollback are then no-ops until the outermost owner closes it.
type Tx interface {
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

type transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) Tx {
	return &transaction{
		Tx:     tx,
		logger: logger,
	}
}

// GetTx returns the transaction carried by ctx when one is open, otherwise it
// begins a new one and stores it on the returned context.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	ctxTx, ok := ctx.Value(txKey).(Tx)
	if ok && ctxTx != nil && ctxTx.IsOpen() {
		status, ok := ctx.Value(txStatusKey).(string)
		if ok && status == "open" {
			return ctx, ctxTx, nil
		}
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction")
	}

	newTx := NewTx(tx, logger)

	ctx = context.WithValue(ctx, txStatusKey, "open")
	ctx = context.WithValue(ctx, txKey, newTx)
	return ctx, newTx, nil
}

func (t *transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	status, ok := ctx.Value(txStatusKey).(string)
	if ok && status == "open" {
		return nil // ctx tx is open and must be closed by the outermost caller
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction")
	}

	t.isClosed = true
	return nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	status, ok := ctx.Value(txStatusKey).(string)
	if ok && status == "open" {
		return nil // ctx tx is open and must be closed by the outermost caller
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction")
	}

	t.isClosed = true
	return nil
}

// RunInTx begins (or joins) a transaction, runs fn and commits, rolling back
// on error. The ctx given to fn carries the transaction so nested repository
// calls join it.
func RunInTx(ctx context.Context, logger ectologger.Logger, db DB, fn func(ctx context.Context, tx Tx) error) error {
	joined := false
	if existing, ok := ctx.Value(txKey).(Tx); ok && existing != nil && existing.IsOpen() {
		joined = true
	}

	ctx, tx, err := GetTx(ctx, logger, db, nil)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if !joined {
			// unwind the tx status marker so Rollback actually fires
			_ = NewTxOwnerRollback(ctx, tx)
		}
		return err
	}

	if joined {
		return nil
	}
	return NewTxOwnerCommit(ctx, tx)
}

// Runner lets services compose repository calls into one transaction
// without depending on the sql surface directly.
type Runner struct {
	db     DB
	logger ectologger.Logger
}

func NewRunner(db DB, logger ectologger.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// RunInTx runs fn inside a transaction carried on the context. Repository
// calls made with the ctx given to fn join it.
func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, r.logger, r.db, func(ctx context.Context, _ Tx) error {
		return fn(ctx)
	})
}

// NewTxOwnerCommit commits a transaction as its owner, stripping the
// open-status marker so the commit is not suppressed.
func NewTxOwnerCommit(ctx context.Context, tx Tx) error {
	return tx.Commit(context.WithValue(ctx, txStatusKey, "closing"))
}

// NewTxOwnerRollback rolls a transaction back as its owner.
func NewTxOwnerRollback(ctx context.Context, tx Tx) error {
	return tx.Rollback(context.WithValue(ctx, txStatusKey, "closing"))
}
