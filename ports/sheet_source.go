package ports

import (
	"context"
	"time"
)

// Spreadsheet is a spreadsheet file visible to the user
type Spreadsheet struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ModifiedTime time.Time `json:"modified_time"`
	WebViewLink  string    `json:"web_view_link"`
	Owners       []string  `json:"owners,omitempty"`
}

// Tab is one sheet inside a spreadsheet
type Tab struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SheetSource provides spreadsheet listings and cell values.
// GetValues returns formatted display values, never raw numeric serials:
// every date and number parser downstream assumes display text.
type SheetSource interface {
	ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error)
	ListTabs(ctx context.Context, spreadsheetID string) ([]Tab, error)
	GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error)
}
