package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/placement"
)

// Observations returns responses to itemID from sessions that completed at
// or before cutoff, each joined with the level its session detected.
// Active and cancelled sessions never contribute.
func (s *Store) Observations(ctx context.Context, itemID int64, cutoff time.Time) ([]calibration.Observation, error) {
	r := entsql.Table(tableResponses).As("r")
	sess := entsql.Table(tableSessions).As("s")
	cutoff = cutoff.UTC()

	query, args := sq.Select(
		r.C("session_id"), r.C("correct"), r.C("elapsed_seconds"),
		r.C("ask_level"), sess.C("detected_level"), r.C("answered_at"),
	).
		From(r).
		Join(sess).On(r.C("session_id"), sess.C("id")).
		Where(entsql.And(
			entsql.EQ(r.C("item_id"), itemID),
			entsql.EQ(sess.C("status"), string(placement.StatusComplete)),
			entsql.NotNull(sess.C("detected_level")),
			entsql.LTE(sess.C("completed_at"), cutoff),
			entsql.LTE(r.C("answered_at"), cutoff),
		)).
		OrderBy(r.C("id")).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var out []calibration.Observation
	for rows.Next() {
		var (
			o              calibration.Observation
			ask, responder string
		)
		if err := rows.Scan(&o.SessionID, &o.Correct, &o.ElapsedSeconds, &ask, &responder, &o.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.AskLevel = level.Level(ask)
		o.ResponderLevel = level.Level(responder)
		out = append(out, o)
	}
	return out, rows.Err()
}
