package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableItems             = "items"
	tableImports           = "imports"
	tableImportErrors      = "import_errors"
	tableSessions          = "sessions"
	tableResponses         = "responses"
	tableReports           = "calibration_reports"
	tableReclassifications = "reclassifications"
	tableItemMetrics       = "item_metrics"
)

var (
	// ImportsColumns holds the columns for the "imports" table.
	ImportsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "source", Type: field.TypeString},
		{Name: "uploaded_by", Type: field.TypeString},
		{Name: "total_rows", Type: field.TypeInt, Default: 0},
		{Name: "successful", Type: field.TypeInt, Default: 0},
		{Name: "failed", Type: field.TypeInt, Default: 0},
		{Name: "status", Type: field.TypeString},
		{Name: "item_ids", Type: field.TypeJSON, Nullable: true},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
	}
	// ImportsTable holds the schema information for the "imports" table.
	ImportsTable = &schema.Table{
		Name:       tableImports,
		Columns:    ImportsColumns,
		PrimaryKey: []*schema.Column{ImportsColumns[0]},
	}

	// ImportErrorsColumns holds the columns for the "import_errors" table.
	ImportErrorsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "import_id", Type: field.TypeInt64},
		{Name: "row_num", Type: field.TypeInt},
		{Name: "errors", Type: field.TypeJSON},
	}
	// ImportErrorsTable holds the schema information for the "import_errors" table.
	ImportErrorsTable = &schema.Table{
		Name:       tableImportErrors,
		Columns:    ImportErrorsColumns,
		PrimaryKey: []*schema.Column{ImportErrorsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "import_errors_imports_errors",
				Columns:    []*schema.Column{ImportErrorsColumns[1]},
				RefColumns: []*schema.Column{ImportsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "importerror_import_id_row_num", Columns: []*schema.Column{ImportErrorsColumns[1], ImportErrorsColumns[2]}},
		},
	}

	// ItemsColumns holds the columns for the "items" table.
	ItemsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "question_text", Type: field.TypeString, Size: 2147483647},
		{Name: "question_type", Type: field.TypeString},
		{Name: "difficulty_level", Type: field.TypeString},
		{Name: "skill_focus", Type: field.TypeString},
		{Name: "options", Type: field.TypeJSON},
		{Name: "correct_answer", Type: field.TypeString},
		{Name: "explanation", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "next_if_correct", Type: field.TypeInt64, Nullable: true},
		{Name: "next_if_incorrect", Type: field.TypeInt64, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "import_id", Type: field.TypeInt64, Nullable: true},
	}
	// ItemsTable holds the schema information for the "items" table.
	ItemsTable = &schema.Table{
		Name:       tableItems,
		Columns:    ItemsColumns,
		PrimaryKey: []*schema.Column{ItemsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "items_imports_items",
				Columns:    []*schema.Column{ItemsColumns[11]},
				RefColumns: []*schema.Column{ImportsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "item_difficulty_level_skill_focus", Columns: []*schema.Column{ItemsColumns[3], ItemsColumns[4]}},
		},
	}

	// SessionsColumns holds the columns for the "sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "owner_id", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "current_level", Type: field.TypeString},
		{Name: "skill_cursor", Type: field.TypeInt, Default: 0},
		{Name: "questions_answered", Type: field.TypeInt, Default: 0},
		{Name: "correct_answers", Type: field.TypeInt, Default: 0},
		{Name: "total_elapsed", Type: field.TypeInt, Default: 0},
		{Name: "self_reported_level", Type: field.TypeString, Nullable: true},
		{Name: "detected_level", Type: field.TypeString, Nullable: true},
		{Name: "results", Type: field.TypeJSON, Nullable: true},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		{Name: "cancelled_at", Type: field.TypeTime, Nullable: true},
		{Name: "current_item_id", Type: field.TypeInt64, Nullable: true},
	}
	// SessionsTable holds the schema information for the "sessions" table.
	SessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sessions_items_presented",
				Columns:    []*schema.Column{SessionsColumns[15]},
				RefColumns: []*schema.Column{ItemsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "session_owner_id_started_at", Columns: []*schema.Column{SessionsColumns[1], SessionsColumns[12]}},
			{Name: "session_status_completed_at", Columns: []*schema.Column{SessionsColumns[3], SessionsColumns[13]}},
		},
	}

	// ResponsesColumns holds the columns for the "responses" table.
	ResponsesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt},
		{Name: "answer", Type: field.TypeString, Size: 2147483647},
		{Name: "correct", Type: field.TypeBool},
		{Name: "elapsed_seconds", Type: field.TypeInt},
		{Name: "ask_level", Type: field.TypeString},
		{Name: "skill", Type: field.TypeString},
		{Name: "answered_at", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "item_id", Type: field.TypeInt64},
	}
	// ResponsesTable holds the schema information for the "responses" table.
	ResponsesTable = &schema.Table{
		Name:       tableResponses,
		Columns:    ResponsesColumns,
		PrimaryKey: []*schema.Column{ResponsesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "responses_sessions_responses",
				Columns:    []*schema.Column{ResponsesColumns[8]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "responses_items_responses",
				Columns:    []*schema.Column{ResponsesColumns[9]},
				RefColumns: []*schema.Column{ItemsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "response_session_id_sequence", Unique: true, Columns: []*schema.Column{ResponsesColumns[8], ResponsesColumns[1]}},
			{Name: "response_item_id_answered_at", Columns: []*schema.Column{ResponsesColumns[9], ResponsesColumns[7]}},
		},
	}

	// CalibrationReportsColumns holds the columns for the "calibration_reports" table.
	CalibrationReportsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "total_items", Type: field.TypeInt},
		{Name: "needs_review", Type: field.TypeInt},
		{Name: "flagged", Type: field.TypeJSON},
		{Name: "well_calibrated", Type: field.TypeJSON},
		{Name: "recommendations", Type: field.TypeJSON},
		{Name: "cutoff", Type: field.TypeTime},
		{Name: "generated_at", Type: field.TypeTime},
	}
	// CalibrationReportsTable holds the schema information for the "calibration_reports" table.
	CalibrationReportsTable = &schema.Table{
		Name:       tableReports,
		Columns:    CalibrationReportsColumns,
		PrimaryKey: []*schema.Column{CalibrationReportsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "calibrationreport_generated_at", Columns: []*schema.Column{CalibrationReportsColumns[8]}},
		},
	}

	// ReclassificationsColumns holds the columns for the "reclassifications" table.
	ReclassificationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "old_level", Type: field.TypeString},
		{Name: "new_level", Type: field.TypeString},
		{Name: "actor", Type: field.TypeString},
		{Name: "reason", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "item_id", Type: field.TypeInt64},
	}
	// ReclassificationsTable holds the schema information for the "reclassifications" table.
	ReclassificationsTable = &schema.Table{
		Name:       tableReclassifications,
		Columns:    ReclassificationsColumns,
		PrimaryKey: []*schema.Column{ReclassificationsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "reclassifications_items_reclassifications",
				Columns:    []*schema.Column{ReclassificationsColumns[7]},
				RefColumns: []*schema.Column{ItemsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "reclassification_item_id_sequence", Columns: []*schema.Column{ReclassificationsColumns[7], ReclassificationsColumns[1]}},
		},
	}

	// ItemMetricsColumns holds the columns for the "item_metrics" table.
	ItemMetricsColumns = []*schema.Column{
		{Name: "item_id", Type: field.TypeInt64},
		{Name: "attempts", Type: field.TypeInt},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "needs_review", Type: field.TypeBool},
		{Name: "data", Type: field.TypeJSON},
		{Name: "computed_at", Type: field.TypeTime},
	}
	// ItemMetricsTable holds the schema information for the "item_metrics" table.
	ItemMetricsTable = &schema.Table{
		Name:       tableItemMetrics,
		Columns:    ItemMetricsColumns,
		PrimaryKey: []*schema.Column{ItemMetricsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "item_metrics_items_metrics",
				Columns:    []*schema.Column{ItemMetricsColumns[0]},
				RefColumns: []*schema.Column{ItemsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "itemmetrics_needs_review_confidence", Columns: []*schema.Column{ItemMetricsColumns[3], ItemMetricsColumns[2]}},
		},
	}

	// Tables holds all the tables in the schema, parents before children.
	Tables = []*schema.Table{
		ImportsTable,
		ImportErrorsTable,
		ItemsTable,
		SessionsTable,
		ResponsesTable,
		CalibrationReportsTable,
		ReclassificationsTable,
		ItemMetricsTable,
	}
)

func init() {
	ImportErrorsTable.ForeignKeys[0].RefTable = ImportsTable
	ItemsTable.ForeignKeys[0].RefTable = ImportsTable
	SessionsTable.ForeignKeys[0].RefTable = ItemsTable
	ResponsesTable.ForeignKeys[0].RefTable = SessionsTable
	ResponsesTable.ForeignKeys[1].RefTable = ItemsTable
	ReclassificationsTable.ForeignKeys[0].RefTable = ItemsTable
	ItemMetricsTable.ForeignKeys[0].RefTable = ItemsTable
}

// rawDDL holds statements the table definitions above cannot express.
var rawDDL = []string{
	// At most one active session per owner.
	`CREATE UNIQUE INDEX IF NOT EXISTS session_owner_id_active
		ON sessions (owner_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`,
	`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`,
}
