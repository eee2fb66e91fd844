package app

import (
	"fmt"

	"sheetflow/adapters/datareadiness/profiler"
	"sheetflow/adapters/datareadiness/transform"
	domaingrouping "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
	"sheetflow/internal/errors"
	"sheetflow/internal/grouping"
	"sheetflow/internal/merge"
)

// PreviewRequest names the tab to load and how to read it
type PreviewRequest struct {
	SpreadsheetID   string           `json:"spreadsheet_id"`
	SpreadsheetName string           `json:"spreadsheet_name"`
	TabName         string           `json:"tab_name"`
	HeaderRow       int              `json:"header_row"` // 1-based, default 1
	Rules           []transform.Rule `json:"rules,omitempty"`
	Required        []string         `json:"required,omitempty"`
}

// Validate checks the request
func (r PreviewRequest) Validate() error {
	if r.SpreadsheetID == "" || r.TabName == "" {
		return errors.InvalidInput("spreadsheet_id and tab_name are required")
	}
	for _, rule := range r.Rules {
		if err := rule.Validate(); err != nil {
			return errors.WithCode(errors.CodeInvalidInput, err)
		}
	}
	return nil
}

// GroupingView is the grouped presentation of a snapshot's rows
type GroupingView struct {
	Config    domaingrouping.Config `json:"config"`
	Result    domaingrouping.Result `json:"result"`
	Roles     domaingrouping.Roles  `json:"roles"`
	Collapsed map[string]bool       `json:"collapsed"`
	Flat      []sheet.Row           `json:"flat"`
}

// Snapshot is one immutable version of the in-memory dataset. Edits produce a
// new snapshot; rows are never shared between snapshots.
type Snapshot struct {
	SpreadsheetID   string                   `json:"spreadsheet_id"`
	SpreadsheetName string                   `json:"spreadsheet_name"`
	TabName         string                   `json:"tab_name"`
	HeaderRow       int                      `json:"header_row"`
	Rules           []transform.Rule         `json:"rules,omitempty"`
	Required        []string                 `json:"required,omitempty"`
	IDFields        []string                 `json:"id_fields"` // fields the row ids hash
	Headers         []string                 `json:"headers"`
	SourceHeaders   map[string]string        `json:"source_headers"`
	SourceRows      []sheet.Row              `json:"-"` // pre-coercion rows carrying __id
	Schema          []sheet.ColumnSchema     `json:"schema"`
	Profiles        []profiler.ColumnProfile `json:"profiles"`
	Rows            []sheet.Row              `json:"rows"`
	Issues          []sheet.Issue            `json:"issues"`
	Grouping        *GroupingView            `json:"grouping,omitempty"`
}

// clone deep-copies everything an edit may change
func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Rules = append([]transform.Rule(nil), s.Rules...)
	c.Required = append([]string(nil), s.Required...)
	c.IDFields = append([]string(nil), s.IDFields...)
	c.Headers = append([]string(nil), s.Headers...)
	c.SourceHeaders = make(map[string]string, len(s.SourceHeaders))
	for k, v := range s.SourceHeaders {
		c.SourceHeaders[k] = v
	}
	c.SourceRows = sheet.CloneRows(s.SourceRows)
	c.Schema = append([]sheet.ColumnSchema(nil), s.Schema...)
	c.Profiles = append([]profiler.ColumnProfile(nil), s.Profiles...)
	c.Rows = sheet.CloneRows(s.Rows)
	c.Issues = append([]sheet.Issue(nil), s.Issues...)
	if s.Grouping != nil {
		g := *s.Grouping
		g.Collapsed = make(map[string]bool, len(s.Grouping.Collapsed))
		for k, v := range s.Grouping.Collapsed {
			g.Collapsed[k] = v
		}
		g.Flat = sheet.CloneRows(s.Grouping.Flat)
		c.Grouping = &g
	}
	return &c
}

func (s *Snapshot) hasColumn(name string) bool {
	for _, h := range s.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// OverrideColumnType patches one column's type and re-coerces every row
func (p *Pipeline) OverrideColumnType(snap *Snapshot, column string, t sheet.InferredType) (*Snapshot, error) {
	if !t.Valid() {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown column type %q", t))
	}
	if !snap.hasColumn(column) {
		return nil, errors.NotFound(fmt.Sprintf("column %s", column))
	}

	next := snap.clone()
	for i := range next.Schema {
		if next.Schema[i].ColumnName == column {
			next.Schema[i].InferredType = t
		}
	}
	p.Recompute(next)
	return next, nil
}

// SetCell replaces one cell of the row at index
func (p *Pipeline) SetCell(snap *Snapshot, index int, column string, value sheet.Value) (*Snapshot, error) {
	if index < 0 || index >= len(snap.SourceRows) {
		return nil, errors.InvalidInput(fmt.Sprintf("row %d out of range", index))
	}
	if !snap.hasColumn(column) {
		return nil, errors.NotFound(fmt.Sprintf("column %s", column))
	}

	next := snap.clone()
	next.SourceRows[index][column] = value
	p.Recompute(next)
	return next, nil
}

// RemoveRows drops the rows at the given indexes
func (p *Pipeline) RemoveRows(snap *Snapshot, indexes []int) (*Snapshot, error) {
	drop := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(snap.SourceRows) {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d out of range", i))
		}
		drop[i] = true
	}

	next := snap.clone()
	kept := next.SourceRows[:0]
	for i, r := range next.SourceRows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	next.SourceRows = kept
	p.Recompute(next)
	return next, nil
}

// RemoveColumns drops columns from headers, schema and rows. Grouping is
// turned off when a key column is removed.
func (p *Pipeline) RemoveColumns(snap *Snapshot, columns []string) (*Snapshot, error) {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !snap.hasColumn(c) {
			return nil, errors.NotFound(fmt.Sprintf("column %s", c))
		}
		drop[c] = true
	}

	next := snap.clone()
	next.Headers = filterStrings(next.Headers, drop)
	next.Required = filterStrings(next.Required, drop)
	for c := range drop {
		delete(next.SourceHeaders, c)
	}

	schema := next.Schema[:0]
	for _, col := range next.Schema {
		if !drop[col.ColumnName] {
			schema = append(schema, col)
		}
	}
	next.Schema = schema

	profiles := next.Profiles[:0]
	for _, prof := range next.Profiles {
		if !drop[prof.ColumnName] {
			profiles = append(profiles, prof)
		}
	}
	next.Profiles = profiles

	for _, r := range next.SourceRows {
		for c := range drop {
			delete(r, c)
		}
	}

	if next.Grouping != nil {
		for _, k := range next.Grouping.Config.Keys {
			if drop[k] {
				next.Grouping = nil
				break
			}
		}
	}

	p.Recompute(next)
	return next, nil
}

// SetGrouping enables grouping with cfg, or disables it when cfg is nil
func (p *Pipeline) SetGrouping(snap *Snapshot, cfg *domaingrouping.Config) (*Snapshot, error) {
	next := snap.clone()
	if cfg == nil {
		next.Grouping = nil
		return next, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	for _, k := range cfg.Keys {
		if !snap.hasColumn(k) {
			return nil, errors.NotFound(fmt.Sprintf("grouping key %s", k))
		}
	}

	next.Grouping = p.regroup(next.Rows, next.Headers, &GroupingView{Config: *cfg})
	if next.Grouping == nil {
		return nil, errors.InvalidInput("grouping could not be built")
	}
	return next, nil
}

// Collapse hides the children of a group
func (p *Pipeline) Collapse(snap *Snapshot, groupID string) (*Snapshot, error) {
	if err := requireGroup(snap, groupID); err != nil {
		return nil, err
	}
	next := snap.clone()
	next.Grouping.Collapsed[groupID] = true
	next.Grouping.Flat = grouping.Collapse(next.Grouping.Flat, groupID)
	return next, nil
}

// Expand shows the children of a group again by rebuilding the flat view
func (p *Pipeline) Expand(snap *Snapshot, groupID string) (*Snapshot, error) {
	if err := requireGroup(snap, groupID); err != nil {
		return nil, err
	}
	next := snap.clone()
	delete(next.Grouping.Collapsed, groupID)
	next.Grouping.Flat = grouping.FlatView(next.Grouping.Result.Groups, next.Grouping.Config, next.Grouping.Collapsed)
	return next, nil
}

func requireGroup(snap *Snapshot, groupID string) error {
	if snap.Grouping == nil {
		return errors.InvalidInput("grouping is not enabled")
	}
	if _, ok := snap.Grouping.Result.GroupIndex[groupID]; !ok {
		return errors.NotFound(fmt.Sprintf("group %s", groupID))
	}
	return nil
}

// Refresh merges freshly fetched values into snap. Incoming rows are projected
// onto the current columns and re-coerced with the current schema; matched
// rows keep the configured preserved fields.
func (p *Pipeline) Refresh(snap *Snapshot, values [][]string) *Snapshot {
	req := PreviewRequest{
		SpreadsheetID: snap.SpreadsheetID,
		TabName:       snap.TabName,
		HeaderRow:     snap.HeaderRow,
		Rules:         snap.Rules,
	}
	_, _, rows := p.extract(values, req)
	key := merge.FieldsKey(snap.IDFields...)

	incoming := make([]sheet.Row, len(rows))
	for i, r := range merge.AttachIDs(rows, key) {
		projected := make(sheet.Row, len(snap.Headers)+1)
		for _, h := range snap.Headers {
			projected[h] = r.Get(h)
		}
		projected[sheet.KeyID] = r[sheet.KeyID]
		incoming[i] = projected
	}

	next := snap.clone()
	next.SourceRows = merge.UpsertMerge(next.SourceRows, incoming, merge.Options{
		IDKey:       key,
		Preserve:    p.opts.PreserveFields,
		DropMissing: p.opts.DropMissing,
	})
	p.Recompute(next)
	return next
}

func filterStrings(in []string, drop map[string]bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
