package dataset

import (
	"time"

	"sheetflow/domain/core"
	"sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
)

// SheetSource records which spreadsheet tab a dataset was imported from
type SheetSource struct {
	ID              core.ID `json:"id" db:"id"`
	UserID          core.ID `json:"user_id" db:"user_id"`
	SpreadsheetID   string  `json:"spreadsheet_id" db:"spreadsheet_id"`
	SpreadsheetName string  `json:"spreadsheet_name" db:"spreadsheet_name"`
	SheetName       string  `json:"sheet_name" db:"sheet_name"`
	HeaderRow       int     `json:"header_row" db:"header_row"`
}

// Dataset is a named, persisted import target. Rows are appended in batches.
type Dataset struct {
	ID              core.ID                   `json:"id"`
	UserID          core.ID                   `json:"user_id"`
	Name            string                    `json:"name"`
	SourceID        core.ID                   `json:"source_id"`
	GroupingEnabled bool                      `json:"grouping_enabled"`
	GroupingConfig  *grouping.PersistedConfig `json:"grouping_config,omitempty"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// Column is the persisted description of one dataset column
type Column struct {
	DatasetID core.ID            `json:"dataset_id" db:"dataset_id"`
	Name      string             `json:"name" db:"name"`
	Type      sheet.InferredType `json:"type" db:"type"`
	MapFrom   string             `json:"map_from" db:"map_from"` // original header text
}

// RowRole tags a stored row as plain, group parent, or group child
type RowRole string

const (
	RoleRow    RowRole = "row"
	RoleParent RowRole = "parent"
	RoleChild  RowRole = "child"
)

// StoredRow is one persisted row of a batch
type StoredRow struct {
	DatasetID     core.ID   `json:"dataset_id"`
	ImportBatchID core.ID   `json:"import_batch_id"`
	Role          RowRole   `json:"role"`
	GroupKey      string    `json:"group_key,omitempty"`
	Data          sheet.Row `json:"data"`
	ImportedAt    time.Time `json:"imported_at"`
}

// Batch summarizes one import run of a dataset
type Batch struct {
	ImportBatchID core.ID   `json:"import_batch_id" db:"import_batch_id"`
	RowCount      int       `json:"row_count" db:"row_count"`
	ImportedAt    time.Time `json:"imported_at" db:"imported_at"`
}

// RowQuery selects a page of stored rows
type RowQuery struct {
	DatasetID     core.ID
	ImportBatchID core.ID // empty selects the latest batch
	Role          RowRole // empty selects every role
	Search        string  // case-insensitive substring over the row's text
	Limit         int
	Offset        int
}

// RowPage is a page of rows plus the total matching count
type RowPage struct {
	Rows  []StoredRow `json:"rows"`
	Total int         `json:"total"`
}

// SaveSummary reports what a save produced
type SaveSummary struct {
	DatasetID     core.ID `json:"dataset_id"`
	ImportBatchID core.ID `json:"import_batch_id"`
	Rows          int     `json:"rows"`
	Parents       int     `json:"parents"`
	Children      int     `json:"children"`
}
