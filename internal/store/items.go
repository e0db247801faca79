package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

var itemColumns = []string{
	"id", "question_text", "question_type", "difficulty_level", "skill_focus",
	"options", "correct_answer", "explanation", "next_if_correct",
	"next_if_incorrect", "import_id", "created_at",
}

// ItemFilter narrows an item listing. Zero fields match everything.
type ItemFilter struct {
	Level level.Level
	Skill bank.Skill
	Limit int
}

// CreateItem validates and inserts an item, returning its ID.
func (s *Store) CreateItem(ctx context.Context, it *bank.Item) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	return createItem(ctx, s.db, it)
}

func createItem(ctx context.Context, q querier, it *bank.Item) (int64, error) {
	opts, err := json.Marshal(it.Options)
	if err != nil {
		return 0, fmt.Errorf("marshal options: %w", err)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	query, args := sq.Insert(tableItems).
		Columns(itemColumns[1:]...).
		Values(
			it.Text, string(it.Type), string(it.Level), string(it.Skill),
			string(opts), it.CorrectAnswer, nullString(it.Explanation),
			nullInt64(it.NextIfCorrect), nullInt64(it.NextIfIncorrect),
			nullInt64(it.ImportID), it.CreatedAt.UTC(),
		).Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapWriteErr("store.create_item", "item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("item id: %w", err)
	}
	it.ID = id
	return id, nil
}

// GetItem returns the item with the given ID.
func (s *Store) GetItem(ctx context.Context, id int64) (*bank.Item, error) {
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*bank.Item, error) {
	query, args := sq.Select(itemColumns...).
		From(entsql.Table(tableItems)).
		Where(entsql.EQ("id", id)).
		Query()
	it, err := scanItem(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("store.get_item", "item %d not found", id).WithItem(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query item %d: %w", id, err)
	}
	return it, nil
}

// ListItems returns every item in ID order.
func (s *Store) ListItems(ctx context.Context) ([]*bank.Item, error) {
	return s.QueryItems(ctx, ItemFilter{})
}

// QueryItems returns the items matching f in ID order.
func (s *Store) QueryItems(ctx context.Context, f ItemFilter) ([]*bank.Item, error) {
	sel := sq.Select(itemColumns...).From(entsql.Table(tableItems))
	var preds []*entsql.Predicate
	if f.Level != "" {
		preds = append(preds, entsql.EQ("difficulty_level", string(f.Level)))
	}
	if f.Skill != "" {
		preds = append(preds, entsql.EQ("skill_focus", string(f.Skill)))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy("id")
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()
	return queryItems(ctx, s.db, query, args)
}

func queryItems(ctx context.Context, q querier, query string, args []any) ([]*bank.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []*bank.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// findCandidate picks the lowest-ID item at lvl and skill not in exclude.
// An empty skill matches any skill.
func findCandidate(ctx context.Context, q querier, lvl level.Level, skill bank.Skill, exclude []int64) (*bank.Item, error) {
	preds := []*entsql.Predicate{entsql.EQ("difficulty_level", string(lvl))}
	if skill != "" {
		preds = append(preds, entsql.EQ("skill_focus", string(skill)))
	}
	if len(exclude) > 0 {
		ids := make([]any, len(exclude))
		for i, id := range exclude {
			ids[i] = id
		}
		preds = append(preds, entsql.NotIn("id", ids...))
	}
	query, args := sq.Select(itemColumns...).
		From(entsql.Table(tableItems)).
		Where(entsql.And(preds...)).
		OrderBy("id").
		Limit(1).
		Query()
	it, err := scanItem(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		what := string(lvl)
		if skill != "" {
			what += " " + string(skill)
		}
		return nil, apperr.Exhausted("store.find_candidate", "no unused %s item left in the bank", what)
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return it, nil
}

func setItemLevel(ctx context.Context, q querier, id int64, lvl level.Level) error {
	query, args := sq.Update(tableItems).
		Set("difficulty_level", string(lvl)).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item level: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("store.set_item_level", "item %d not found", id).WithItem(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*bank.Item, error) {
	var (
		it                  bank.Item
		typ, lvl, skill     string
		opts                []byte
		explanation         sql.NullString
		nextOK, nextBad, im sql.NullInt64
	)
	err := r.Scan(&it.ID, &it.Text, &typ, &lvl, &skill, &opts, &it.CorrectAnswer,
		&explanation, &nextOK, &nextBad, &im, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(opts, &it.Options); err != nil {
		return nil, fmt.Errorf("decode options of item %d: %w", it.ID, err)
	}
	it.Type = bank.ItemType(typ)
	it.Level = level.Level(lvl)
	it.Skill = bank.Skill(skill)
	it.Explanation = explanation.String
	it.NextIfCorrect = int64Ptr(nextOK)
	it.NextIfIncorrect = int64Ptr(nextBad)
	it.ImportID = int64Ptr(im)
	return &it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
