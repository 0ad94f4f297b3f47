// Package dbx holds the transaction helper used by the local credential
// store.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is implemented by *sql.DB and *sql.Tx, so a repository can be bound to
// either.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction and commits if fn succeeds. An error or
// a panic from fn rolls the transaction back; the panic is then re-raised.
//
// The local database allows a single open connection, so fn must use tx
// only. Touching db inside fn would wait for the connection fn itself holds.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := metadata.NewSQLiteRepository(tx)
//	    if err := repo.Set(ctx, "token", token); err != nil {
//	        return err
//	    }
//	    return repo.Set(ctx, "token_saved_at", savedAt)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return tx.Commit()
}
