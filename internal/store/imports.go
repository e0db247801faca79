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
)

var importColumns = []string{
	"id", "source", "uploaded_by", "total_rows", "successful", "failed",
	"status", "item_ids", "started_at", "completed_at",
}

// BeginImport records a new import run in the processing state.
func (s *Store) BeginImport(ctx context.Context, source, uploadedBy string, totalRows int) (int64, error) {
	query, args := sq.Insert(tableImports).
		Columns("source", "uploaded_by", "total_rows", "status", "started_at").
		Values(source, uploadedBy, totalRows, bank.ImportProcessing, time.Now().UTC()).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	return res.LastInsertId()
}

// FinishImport stores the counters, item IDs and row errors of a run.
func (s *Store) FinishImport(ctx context.Context, res *bank.ImportResult) error {
	ids, err := json.Marshal(res.ItemIDs)
	if err != nil {
		return fmt.Errorf("marshal item ids: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query, args := sq.Update(tableImports).
			Set("successful", res.Successful).
			Set("failed", res.Failed).
			Set("status", res.Status).
			Set("item_ids", string(ids)).
			Set("completed_at", res.CompletedAt.UTC()).
			Where(entsql.EQ("id", res.ID)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update import %d: %w", res.ID, err)
		}
		for _, re := range res.Errors {
			msgs, err := json.Marshal(re.Errors)
			if err != nil {
				return fmt.Errorf("marshal row errors: %w", err)
			}
			query, args := sq.Insert(tableImportErrors).
				Columns("import_id", "row_num", "errors").
				Values(res.ID, re.Row, string(msgs)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert row error: %w", err)
			}
		}
		return nil
	})
}

// GetImport returns an import run with its row errors.
func (s *Store) GetImport(ctx context.Context, id int64) (*bank.ImportResult, error) {
	query, args := sq.Select(importColumns...).
		From(entsql.Table(tableImports)).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := scanImport(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("store.get_import", "import %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query import %d: %w", id, err)
	}

	query, args = sq.Select("row_num", "errors").
		From(entsql.Table(tableImportErrors)).
		Where(entsql.EQ("import_id", id)).
		OrderBy("row_num").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query import errors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			re   bank.RowError
			msgs []byte
		)
		if err := rows.Scan(&re.Row, &msgs); err != nil {
			return nil, fmt.Errorf("scan import error: %w", err)
		}
		if err := json.Unmarshal(msgs, &re.Errors); err != nil {
			return nil, fmt.Errorf("decode import error: %w", err)
		}
		res.Errors = append(res.Errors, re)
	}
	return res, rows.Err()
}

// ListImports returns up to limit import runs, newest first, without their
// row errors.
func (s *Store) ListImports(ctx context.Context, limit int) ([]*bank.ImportResult, error) {
	sel := sq.Select(importColumns...).
		From(entsql.Table(tableImports)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []*bank.ImportResult
	for rows.Next() {
		res, err := scanImport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanImport(r rowScanner) (*bank.ImportResult, error) {
	var (
		res       bank.ImportResult
		ids       sql.NullString
		completed sql.NullTime
	)
	err := r.Scan(&res.ID, &res.Source, &res.UploadedBy, &res.TotalRows, &res.Successful,
		&res.Failed, &res.Status, &ids, &res.StartedAt, &completed)
	if err != nil {
		return nil, err
	}
	if ids.Valid && ids.String != "" {
		if err := json.Unmarshal([]byte(ids.String), &res.ItemIDs); err != nil {
			return nil, fmt.Errorf("decode item ids of import %d: %w", res.ID, err)
		}
	}
	if completed.Valid {
		res.CompletedAt = completed.Time
	}
	return &res, nil
}
