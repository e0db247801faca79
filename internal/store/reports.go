package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
)

var reportColumns = []string{
	"id", "total_items", "needs_review", "flagged", "well_calibrated",
	"recommendations", "cutoff", "generated_at",
}

// SaveReport stores an immutable report snapshot and returns its ID.
func (s *Store) SaveReport(ctx context.Context, r *calibration.Report) (int64, error) {
	flagged, err := json.Marshal(r.Flagged)
	if err != nil {
		return 0, fmt.Errorf("marshal flagged items: %w", err)
	}
	wc, err := json.Marshal(r.WellCalibrated)
	if err != nil {
		return 0, fmt.Errorf("marshal well-calibrated map: %w", err)
	}
	recs, err := json.Marshal(r.Recommendations)
	if err != nil {
		return 0, fmt.Errorf("marshal recommendations: %w", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSequence(ctx, tx)
		if err != nil {
			return err
		}
		query, args := sq.Insert(tableReports).
			Columns("sequence", "total_items", "needs_review", "flagged",
				"well_calibrated", "recommendations", "cutoff", "generated_at").
			Values(seq, r.TotalItems, r.NeedsReview, string(flagged), string(wc),
				string(recs), r.Cutoff.UTC(), r.GeneratedAt.UTC()).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetReport returns a saved report.
func (s *Store) GetReport(ctx context.Context, id int64) (*calibration.Report, error) {
	query, args := sq.Select(reportColumns...).
		From(entsql.Table(tableReports)).
		Where(entsql.EQ("id", id)).
		Query()
	r, err := scanReport(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("store.get_report", "report %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query report %d: %w", id, err)
	}
	return r, nil
}

// ListReports returns up to limit reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]*calibration.Report, error) {
	sel := sq.Select(reportColumns...).
		From(entsql.Table(tableReports)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*calibration.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(rs rowScanner) (*calibration.Report, error) {
	var (
		r                 calibration.Report
		flagged, wc, recs []byte
	)
	err := rs.Scan(&r.ID, &r.TotalItems, &r.NeedsReview, &flagged, &wc, &recs, &r.Cutoff, &r.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flagged, &r.Flagged); err != nil {
		return nil, fmt.Errorf("decode flagged items of report %d: %w", r.ID, err)
	}
	r.WellCalibrated = map[level.Level]float64{}
	if err := json.Unmarshal(wc, &r.WellCalibrated); err != nil {
		return nil, fmt.Errorf("decode well-calibrated map of report %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(recs, &r.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations of report %d: %w", r.ID, err)
	}
	return &r, nil
}
