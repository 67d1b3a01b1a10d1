package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/funding-ledger/internal/storage"
)

// inTx runs fn inside a database transaction, committing on nil and rolling
// back on error. All invariant-bearing write paths go through this so no
// caller can partially apply a multi-table mutation.
func inTx(ctx context.Context, db *storage.PostgresDB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
