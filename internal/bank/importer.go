package bank

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/logger"
)

// Format is the encoding of an import file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// DetectFormat infers the import format from a file name.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", apperr.Validation("bank.import", "file", "unsupported file type %q (want .csv, .xlsx or .json)", filepath.Ext(name))
}

// RequiredColumns must be present in every tabular import.
var RequiredColumns = []string{
	"question_text",
	"question_type",
	"difficulty_level",
	"skill_focus",
	"option_1",
	"option_2",
	"correct_answer",
}

// Row is one record of an import file keyed by column name. Num is the
// 1-based line the record came from (the header is line 1).
type Row struct {
	Num    int
	Fields map[string]string
}

func (r Row) get(col string) string {
	return strings.TrimSpace(r.Fields[col])
}

// RowError lists the problems found on one row.
type RowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// Import run statuses.
const (
	ImportProcessing = "processing"
	ImportCompleted  = "completed"
	ImportFailed     = "failed"
)

// ImportResult summarizes one import run.
type ImportResult struct {
	ID          int64
	Source      string
	UploadedBy  string
	TotalRows   int
	Successful  int
	Failed      int
	Errors      []RowError
	ItemIDs     []int64
	Status      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// ImportSink persists items and import runs.
type ImportSink interface {
	BeginImport(ctx context.Context, source, uploadedBy string, totalRows int) (int64, error)
	CreateItem(ctx context.Context, it *Item) (int64, error)
	FinishImport(ctx context.Context, res *ImportResult) error
}

// Importer loads items in bulk from tabular files.
type Importer struct {
	sink ImportSink
	log  *logger.Logger
}

func NewImporter(sink ImportSink, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{sink: sink, log: log}
}

// Import reads every row from r, validates each independently, stores the
// valid ones and records the run. Row problems never abort the run; only
// an unreadable file or a storage failure on the run record does.
func (im *Importer) Import(ctx context.Context, source, uploadedBy string, format Format, r io.Reader) (*ImportResult, error) {
	rows, err := ReadRows(format, r)
	if err != nil {
		return nil, err
	}
	if uploadedBy == "" {
		uploadedBy = "admin"
	}

	res := &ImportResult{
		Source:     source,
		UploadedBy: uploadedBy,
		TotalRows:  len(rows),
		Status:     ImportProcessing,
		StartedAt:  time.Now(),
	}
	res.ID, err = im.sink.BeginImport(ctx, source, uploadedBy, len(rows))
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	log := im.log.With("import_id", res.ID, "source", source)

	for _, row := range rows {
		it, problems := ParseRow(row)
		if len(problems) > 0 {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Row: row.Num, Errors: problems})
			continue
		}
		importID := res.ID
		it.ImportID = &importID
		id, err := im.sink.CreateItem(ctx, it)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{
				Row:    row.Num,
				Errors: []string{fmt.Sprintf("Row %d: database error: %v", row.Num, err)},
			})
			log.Warn("item insert failed", "row", row.Num, "error", err)
			continue
		}
		res.Successful++
		res.ItemIDs = append(res.ItemIDs, id)
	}

	res.Status = ImportCompleted
	res.CompletedAt = time.Now()
	if err := im.sink.FinishImport(ctx, res); err != nil {
		return res, fmt.Errorf("finish import: %w", err)
	}
	log.Info("import finished", "total", res.TotalRows, "successful", res.Successful, "failed", res.Failed)
	return res, nil
}

// ParseRow converts a row into an item, collecting every problem found.
func ParseRow(row Row) (*Item, []string) {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("Row %d: ", row.Num)+fmt.Sprintf(format, args...))
	}

	it := &Item{
		Text:          row.get("question_text"),
		Type:          ItemType(row.get("question_type")),
		Level:         level.Level(row.get("difficulty_level")),
		Skill:         Skill(row.get("skill_focus")),
		CorrectAnswer: row.get("correct_answer"),
		Explanation:   row.get("explanation"),
	}
	for i := 1; i <= MaxOptions; i++ {
		if o := row.get(fmt.Sprintf("option_%d", i)); o != "" {
			it.Options = append(it.Options, o)
		}
	}

	if it.Text == "" {
		add("question_text is empty")
	}
	if !it.Type.Valid() {
		add("invalid question_type %q, must be one of %v", it.Type, AllTypes())
	}
	if !it.Level.Valid() {
		add("invalid difficulty_level %q, must be one of %v", it.Level, level.All())
	}
	if !it.Skill.Valid() {
		add("invalid skill_focus %q, must be one of %v", it.Skill, Rotation())
	}
	if len(it.Options) < MinOptions {
		add("at least %d options required", MinOptions)
	}
	if it.CorrectAnswer == "" {
		add("correct_answer is empty")
	} else if len(it.Options) > 0 && !it.HasOption(it.CorrectAnswer) {
		add("correct_answer %q not found in options", it.CorrectAnswer)
	}
	if len(problems) > 0 {
		return nil, problems
	}
	// Remaining invariants (duplicates, blank options) are covered by Validate.
	if err := it.Validate(); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			add("%s", ae.Msg)
		} else {
			add("%v", err)
		}
		return nil, problems
	}
	return it, nil
}

// ReadRows decodes an import file into rows.
func ReadRows(format Format, r io.Reader) ([]Row, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatXLSX:
		return readXLSX(r)
	case FormatJSON:
		return readJSON(r)
	}
	return nil, apperr.Validation("bank.import", "format", "unsupported format %q", format)
}

func readCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperr.Validation("bank.import", "file", "parse csv: %v", err)
	}
	return tableRows(records)
}

func readXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("bank.import", "file", "open xlsx: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("bank.import", "file", "workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("bank.import", "file", "read sheet %q: %v", sheets[0], err)
	}
	return tableRows(records)
}

// tableRows maps a header row plus data rows into Rows. Blank lines are
// skipped but still counted so row numbers match the source file.
func tableRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, apperr.Validation("bank.import", "file", "file is empty")
	}
	header := make([]string, len(records[0]))
	present := make(map[string]bool, len(header))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		present[header[i]] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("bank.import", "header", "missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := Row{Num: i + 2, Fields: make(map[string]string, len(header))}
		for j, v := range rec {
			if j < len(header) && header[j] != "" {
				row.Fields[header[j]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// itemFileSchema describes a JSON import: an array of flat objects using
// the same keys as the tabular columns.
var itemFileSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_text":    map[string]any{"type": "string"},
			"question_type":    map[string]any{"type": "string"},
			"difficulty_level": map[string]any{"type": "string"},
			"skill_focus":      map[string]any{"type": "string"},
			"option_1":         map[string]any{"type": "string"},
			"option_2":         map[string]any{"type": "string"},
			"option_3":         map[string]any{"type": "string"},
			"option_4":         map[string]any{"type": "string"},
			"option_5":         map[string]any{"type": "string"},
			"option_6":         map[string]any{"type": "string"},
			"correct_answer":   map[string]any{"type": "string"},
			"explanation":      map[string]any{"type": "string"},
		},
		"required":             []any{"question_text", "question_type", "difficulty_level", "skill_focus", "option_1", "option_2", "correct_answer"},
		"additionalProperties": false,
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func itemSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a decoded JSON value, not Go literals.
		raw, err := json.Marshal(itemFileSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(raw, &def); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://gauge-items.json"
		if err := c.AddResource(url, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(url)
	})
	return compiledSchema, compileErr
}

func readJSON(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Validation("bank.import", "file", "invalid JSON: %v", err)
	}
	schema, err := itemSchema()
	if err != nil {
		return nil, fmt.Errorf("compile item schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, apperr.Validation("bank.import", "file", "schema validation failed: %v", err)
	}

	var objs []map[string]string
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, apperr.Validation("bank.import", "file", "decode items: %v", err)
	}
	rows := make([]Row, len(objs))
	for i, o := range objs {
		rows[i] = Row{Num: i + 1, Fields: o}
	}
	return rows, nil
}
