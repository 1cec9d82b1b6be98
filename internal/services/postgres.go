package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txCtxKey struct{}

// conn returns the transaction carried by ctx, or the pool outside of one.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Transactor runs units of work in a serializable transaction holding a
// transaction-scoped advisory lock on the workspace.
type Transactor struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewTransactor(logger zerolog.Logger, pgPool *pgxpool.Pool) *Transactor {
	return &Transactor{
		logger: logger,
		pgPool: pgPool,
	}
}

func (t *Transactor) WithinWorkspace(ctx context.Context, workspaceID string, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pgPool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		t.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockWorkspaceQuery = `
SELECT pg_advisory_xact_lock(hashtextextended($1, 0))
`
	_, err = tx.Exec(ctx, lockWorkspaceQuery, workspaceID)
	if err != nil {
		t.logger.Error().
			Err(err).
			Str("workspace_id", workspaceID).
			Msg("failed to lock workspace")
		return fmt.Errorf("lock workspace: %w", err)
	}

	err = fn(context.WithValue(ctx, txCtxKey{}, tx))
	if err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		if isPgError(err, pgerrcode.SerializationFailure) {
			t.logger.Warn().
				Str("workspace_id", workspaceID).
				Msg("serialization failure on commit")
		}
		t.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return err
	}
	return nil
}
