package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/placement"
)

var sessionColumns = []string{
	"id", "owner_id", "kind", "status", "current_level", "skill_cursor",
	"questions_answered", "correct_answers", "total_elapsed", "current_item_id",
	"self_reported_level", "results", "started_at", "completed_at", "cancelled_at",
}

var responseColumns = []string{
	"id", "session_id", "item_id", "sequence", "answer", "correct",
	"elapsed_seconds", "ask_level", "skill", "answered_at",
}

// GetSession returns the session with the given ID.
func (s *Store) GetSession(ctx context.Context, id string) (*placement.Session, error) {
	return getSession(ctx, s.db, id)
}

// Responses returns a session's responses in sequence order.
func (s *Store) Responses(ctx context.Context, sessionID string) ([]placement.Response, error) {
	return listResponses(ctx, s.db, sessionID)
}

// ListByOwner returns an owner's sessions, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*placement.Session, error) {
	return listSessions(ctx, s.db, ownerID, limit)
}

// WithinTx runs fn in one write transaction over sessions, responses and
// items.
func (s *Store) WithinTx(ctx context.Context, fn func(tx placement.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&sessionTx{tx: tx})
	})
}

// sessionTx implements placement.Tx.
type sessionTx struct {
	tx *sql.Tx
}

func (t *sessionTx) FindCandidate(ctx context.Context, lvl level.Level, skill bank.Skill, exclude []int64) (*bank.Item, error) {
	return findCandidate(ctx, t.tx, lvl, skill, exclude)
}

func (t *sessionTx) GetItem(ctx context.Context, id int64) (*bank.Item, error) {
	return getItem(ctx, t.tx, id)
}

func (t *sessionTx) GetSession(ctx context.Context, id string) (*placement.Session, error) {
	return getSession(ctx, t.tx, id)
}

func (t *sessionTx) Responses(ctx context.Context, sessionID string) ([]placement.Response, error) {
	return listResponses(ctx, t.tx, sessionID)
}

func (t *sessionTx) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*placement.Session, error) {
	return listSessions(ctx, t.tx, ownerID, limit)
}

func (t *sessionTx) ActiveForOwner(ctx context.Context, ownerID string) (*placement.Session, error) {
	query, args := sq.Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.And(
			entsql.EQ("owner_id", ownerID),
			entsql.EQ("status", string(placement.StatusActive)),
		)).
		Limit(1).
		Query()
	sess, err := scanSession(t.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active session: %w", err)
	}
	return sess, nil
}

func (t *sessionTx) CreateSession(ctx context.Context, sess *placement.Session) error {
	vals, err := sessionValues(sess)
	if err != nil {
		return err
	}
	query, args := sq.Insert(tableSessions).
		Columns(sessionColumns...).
		Values(append([]any{sess.ID, sess.OwnerID, string(sess.Kind)}, vals...)...).
		Query()
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		err = mapWriteErr("store.create_session", "active session for owner "+sess.OwnerID, err)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae.WithSession(sess.ID)
		}
		return err
	}
	return nil
}

func (t *sessionTx) UpdateSession(ctx context.Context, sess *placement.Session) error {
	vals, err := sessionValues(sess)
	if err != nil {
		return err
	}
	upd := sq.Update(tableSessions)
	for i, col := range sessionColumns[3:] {
		upd.Set(col, vals[i])
	}
	query, args := upd.Where(entsql.EQ("id", sess.ID)).Query()
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr("store.update_session", "session", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("store.update_session", "session %s not found", sess.ID).WithSession(sess.ID)
	}
	if sess.Result != nil {
		query, args := sq.Update(tableSessions).
			Set("detected_level", string(sess.Result.Level)).
			Where(entsql.EQ("id", sess.ID)).
			Query()
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("set detected level: %w", err)
		}
	}
	return nil
}

func (t *sessionTx) AppendResponse(ctx context.Context, r *placement.Response) error {
	query, args := sq.Insert(tableResponses).
		Columns(responseColumns[1:]...).
		Values(r.SessionID, r.ItemID, r.Sequence, r.Answer, r.Correct,
			r.ElapsedSeconds, string(r.AskLevel), string(r.Skill), r.AnsweredAt.UTC()).
		Query()
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		err = mapWriteErr("store.append_response", fmt.Sprintf("response %d", r.Sequence), err)
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae.WithSession(r.SessionID).WithItem(r.ItemID)
		}
		return err
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("response id: %w", err)
	}
	return nil
}

// sessionValues returns the values for sessionColumns[3:].
func sessionValues(sess *placement.Session) ([]any, error) {
	var results sql.NullString
	if sess.Result != nil {
		b, err := json.Marshal(sess.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal results: %w", err)
		}
		results = sql.NullString{String: string(b), Valid: true}
	}
	var self sql.NullString
	if sess.SelfReported != nil {
		self = sql.NullString{String: string(*sess.SelfReported), Valid: true}
	}
	var current sql.NullInt64
	if sess.CurrentItemID != 0 {
		current = sql.NullInt64{Int64: sess.CurrentItemID, Valid: true}
	}
	return []any{
		string(sess.Status), string(sess.CurrentLevel), sess.SkillCursor,
		sess.QuestionsAnswered, sess.CorrectAnswers, sess.TotalElapsed, current,
		self, results, sess.StartedAt.UTC(), nullTime(sess.CompletedAt), nullTime(sess.CancelledAt),
	}, nil
}

func getSession(ctx context.Context, q querier, id string) (*placement.Session, error) {
	query, args := sq.Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()
	sess, err := scanSession(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("store.get_session", "session %s not found", id).WithSession(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", id, err)
	}
	return sess, nil
}

func listSessions(ctx context.Context, q querier, ownerID string, limit int) ([]*placement.Session, error) {
	sel := sq.Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*placement.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(r rowScanner) (*placement.Session, error) {
	var (
		sess                  placement.Session
		kind, status, current string
		item                  sql.NullInt64
		self, results         sql.NullString
		completed, cancelled  sql.NullTime
	)
	err := r.Scan(&sess.ID, &sess.OwnerID, &kind, &status, &current, &sess.SkillCursor,
		&sess.QuestionsAnswered, &sess.CorrectAnswers, &sess.TotalElapsed, &item,
		&self, &results, &sess.StartedAt, &completed, &cancelled)
	if err != nil {
		return nil, err
	}
	sess.Kind = placement.Kind(kind)
	sess.Status = placement.Status(status)
	sess.CurrentLevel = level.Level(current)
	sess.CurrentItemID = item.Int64
	if self.Valid {
		l := level.Level(self.String)
		sess.SelfReported = &l
	}
	if results.Valid {
		var est placement.Estimation
		if err := json.Unmarshal([]byte(results.String), &est); err != nil {
			return nil, fmt.Errorf("decode results of session %s: %w", sess.ID, err)
		}
		sess.Result = &est
	}
	sess.CompletedAt = timePtr(completed)
	sess.CancelledAt = timePtr(cancelled)
	return &sess, nil
}

func listResponses(ctx context.Context, q querier, sessionID string) ([]placement.Response, error) {
	query, args := sq.Select(responseColumns...).
		From(entsql.Table(tableResponses)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("sequence").
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []placement.Response
	for rows.Next() {
		var (
			r          placement.Response
			ask, skill string
		)
		err := rows.Scan(&r.ID, &r.SessionID, &r.ItemID, &r.Sequence, &r.Answer, &r.Correct,
			&r.ElapsedSeconds, &ask, &skill, &r.AnsweredAt)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.AskLevel = level.Level(ask)
		r.Skill = bank.Skill(skill)
		out = append(out, r)
	}
	return out, rows.Err()
}
