package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/calibration"
)

// SaveMetrics upserts the latest metrics of each item in one transaction.
func (s *Store) SaveMetrics(ctx context.Context, ms []calibration.ItemMetrics) error {
	if len(ms) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range ms {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal metrics of item %d: %w", m.ItemID, err)
			}
			query, args := sq.Insert(tableItemMetrics).
				Columns("item_id", "attempts", "confidence", "needs_review", "data", "computed_at").
				Values(m.ItemID, m.Attempts, m.Confidence, m.NeedsReview, string(data), m.ComputedAt.UTC()).
				OnConflict(
					entsql.ConflictColumns("item_id"),
					entsql.ResolveWithNewValues(),
				).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return mapWriteErr("store.save_metrics", fmt.Sprintf("metrics of item %d", m.ItemID), err)
			}
		}
		return nil
	})
}

// GetMetrics returns the stored metrics of an item, or nil if none exist.
func (s *Store) GetMetrics(ctx context.Context, itemID int64) (*calibration.ItemMetrics, error) {
	query, args := sq.Select("data").
		From(entsql.Table(tableItemMetrics)).
		Where(entsql.EQ("item_id", itemID)).
		Query()
	var data []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query metrics of item %d: %w", itemID, err)
	}
	var m calibration.ItemMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metrics of item %d: %w", itemID, err)
	}
	return &m, nil
}

// ListFlagged returns flagged metrics with at least minAttempts, lowest
// confidence first.
func (s *Store) ListFlagged(ctx context.Context, minAttempts int) ([]calibration.ItemMetrics, error) {
	query, args := sq.Select("data").
		From(entsql.Table(tableItemMetrics)).
		Where(entsql.And(
			entsql.EQ("needs_review", true),
			entsql.GTE("attempts", minAttempts),
		)).
		OrderBy("confidence", "item_id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flagged metrics: %w", err)
	}
	defer rows.Close()

	var out []calibration.ItemMetrics
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		var m calibration.ItemMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMetrics drops the stored metrics of an item.
func (s *Store) DeleteMetrics(ctx context.Context, itemID int64) error {
	query, args := sq.Delete(tableItemMetrics).
		Where(entsql.EQ("item_id", itemID)).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete metrics of item %d: %w", itemID, err)
	}
	return nil
}
