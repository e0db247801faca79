package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
)

// WithinLedgerTx runs fn in one write transaction covering the item's level
// and the reclassification log.
func (s *Store) WithinLedgerTx(ctx context.Context, fn func(tx calibration.LedgerTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// ledgerTx implements calibration.LedgerTx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) GetItem(ctx context.Context, id int64) (*bank.Item, error) {
	return getItem(ctx, t.tx, id)
}

func (t *ledgerTx) SetItemLevel(ctx context.Context, id int64, lvl level.Level) error {
	return setItemLevel(ctx, t.tx, id, lvl)
}

func (t *ledgerTx) AppendReclassification(ctx context.Context, r *calibration.Reclassification) error {
	seq, err := nextSequence(ctx, t.tx)
	if err != nil {
		return err
	}
	query, args := sq.Insert(tableReclassifications).
		Columns("sequence", "item_id", "old_level", "new_level", "actor", "reason", "created_at").
		Values(seq, r.ItemID, string(r.OldLevel), string(r.NewLevel), r.Actor, nullString(r.Reason), r.At.UTC()).
		Query()
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr("store.append_reclassification", "reclassification", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reclassification id: %w", err)
	}
	r.ID, r.Sequence = id, seq
	return nil
}

// Reclassifications lists an item's records, newest first.
func (s *Store) Reclassifications(ctx context.Context, itemID int64) ([]calibration.Reclassification, error) {
	query, args := sq.Select("id", "sequence", "item_id", "old_level", "new_level", "actor", "reason", "created_at").
		From(entsql.Table(tableReclassifications)).
		Where(entsql.EQ("item_id", itemID)).
		OrderBy(entsql.Desc("sequence")).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reclassifications: %w", err)
	}
	defer rows.Close()

	var out []calibration.Reclassification
	for rows.Next() {
		var (
			r             calibration.Reclassification
			oldLvl, newLv string
			reason        sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Sequence, &r.ItemID, &oldLvl, &newLv, &r.Actor, &reason, &r.At); err != nil {
			return nil, fmt.Errorf("scan reclassification: %w", err)
		}
		r.OldLevel = level.Level(oldLvl)
		r.NewLevel = level.Level(newLv)
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}
