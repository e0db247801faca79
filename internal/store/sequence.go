package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/abhisek/gauge/internal/apperr"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repository code can
// run inside or outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sq builds SQLite statements. Identifiers are quoted by the builder.
var sq = entsql.Dialect(dialect.SQLite)

// nextSequence returns the next value of the global sequence shared by
// reports and reclassifications. It must run inside the caller's write
// transaction so the increment commits or rolls back with the record it
// numbers; the RETURNING clause makes the increment atomic at the database
// level.
func nextSequence(ctx context.Context, q querier) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// withTx runs fn in a write transaction. With _txlock=immediate the BEGIN
// takes the write lock, so fn sees no concurrent writer.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rollback: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mapWriteErr turns constraint violations into apperr conflicts and wraps
// everything else.
func mapWriteErr(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case sqlgraph.IsUniqueConstraintError(err):
		return &apperr.Error{Kind: apperr.KindConflict, Op: op, Msg: what + " already exists", Err: err}
	case sqlgraph.IsForeignKeyConstraintError(err):
		return &apperr.Error{Kind: apperr.KindConflict, Op: op, Msg: what + " references a missing or protected row", Err: err}
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
