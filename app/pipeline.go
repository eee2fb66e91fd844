package app

import (
	"sort"

	"sheetflow/adapters/datareadiness/coercer"
	"sheetflow/adapters/datareadiness/normalizer"
	"sheetflow/adapters/datareadiness/profiler"
	"sheetflow/adapters/datareadiness/transform"
	"sheetflow/adapters/datareadiness/validator"
	"sheetflow/domain/sheet"
	"sheetflow/internal/grouping"
	"sheetflow/internal/merge"
)

// PipelineOptions configures every stage of the import pipeline
type PipelineOptions struct {
	Normalize      normalizer.Options
	Infer          profiler.Options
	Coerce         coercer.Options
	Validate       validator.Options
	IDFields       []string
	PreserveFields []string
	DropMissing    bool
}

// DefaultPipelineOptions returns the standard pipeline options
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		Normalize: normalizer.DefaultOptions(),
		Infer:     profiler.DefaultOptions(),
		Coerce:    coercer.DefaultOptions(),
		Validate:  validator.DefaultOptions(),
		IDFields:  merge.DefaultIDFields,
	}
}

// Pipeline runs the pure transformation stages. It holds no mutable state.
type Pipeline struct {
	opts      PipelineOptions
	profiler  *profiler.Profiler
	coercer   *coercer.TypeCoercer
	validator *validator.Validator
}

// NewPipeline creates a pipeline
func NewPipeline(opts PipelineOptions) *Pipeline {
	if len(opts.IDFields) == 0 {
		opts.IDFields = merge.DefaultIDFields
	}
	opts.Validate.DayFirst = opts.Coerce.DayFirst
	return &Pipeline{
		opts:      opts,
		profiler:  profiler.NewProfiler(opts.Infer),
		coercer:   coercer.NewTypeCoercer(opts.Coerce),
		validator: validator.NewValidator(opts.Validate),
	}
}

// Options returns the pipeline options
func (p *Pipeline) Options() PipelineOptions {
	return p.opts
}

// Build runs normalize, transform, infer, coerce and validate over a fetched
// value grid and returns a new snapshot
func (p *Pipeline) Build(values [][]string, req PreviewRequest) *Snapshot {
	table, headers, rows := p.extract(values, req)
	idFields := p.idFields(headers)
	sourceRows := merge.AttachIDs(rows, merge.FieldsKey(idFields...))

	snap := &Snapshot{
		SpreadsheetID:   req.SpreadsheetID,
		SpreadsheetName: req.SpreadsheetName,
		TabName:         req.TabName,
		HeaderRow:       headerRowOf(req),
		Rules:           append([]transform.Rule(nil), req.Rules...),
		Required:        append([]string(nil), req.Required...),
		IDFields:        idFields,
		Headers:         headers,
		SourceHeaders:   sourceHeaderMap(headers, normalizer.SourceHeaders(table.Header)),
		SourceRows:      sourceRows,
	}

	schema, profiles := p.profiler.InferSchema(sourceRows, headers)
	snap.Schema, _ = profiler.GuardIdentifiers(schema, sourceRows)
	snap.Profiles = profiles

	p.Recompute(snap)
	return snap
}

// extract normalizes the grid and applies the transform rules
func (p *Pipeline) extract(values [][]string, req PreviewRequest) (normalizer.Table, []string, []sheet.Row) {
	table := normalizer.Extract(sheet.MatrixFromStrings(values), headerRowOf(req))
	headers := normalizer.NormalizeHeaders(table.Header, p.opts.Normalize.MachineSafe)
	data := transform.ApplyRules(table.Data, headers, req.Rules, p.opts.Coerce.DayFirst)
	return table, headers, normalizer.MapRows(headers, data, p.opts.Normalize)
}

// idFields picks the configured id fields when the sheet has any of them and
// otherwise every column
func (p *Pipeline) idFields(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, f := range p.opts.IDFields {
		if present[f] {
			return append([]string(nil), p.opts.IDFields...)
		}
	}
	return append([]string(nil), headers...)
}

// Recompute re-derives typed rows, issues and the grouping view from the
// snapshot's source rows and schema
func (p *Pipeline) Recompute(snap *Snapshot) {
	typed, coercionIssues := p.coercer.CoerceRowsToSchema(snap.SourceRows, snap.Schema)
	validation := p.validator.Validate(snap.SourceRows, snap.Headers, snap.Schema, snap.Required)

	snap.Rows = typed
	snap.Issues = mergeIssues(snap.Headers, validation, coercionIssues)

	if snap.Grouping != nil {
		snap.Grouping = p.regroup(snap.Rows, snap.Headers, snap.Grouping)
	}
}

func (p *Pipeline) regroup(rows []sheet.Row, headers []string, view *GroupingView) *GroupingView {
	result, err := grouping.GroupRows(rows, view.Config)
	if err != nil {
		return nil
	}

	collapsed := make(map[string]bool, len(view.Collapsed))
	for id := range view.Collapsed {
		if _, ok := result.GroupIndex[id]; ok {
			collapsed[id] = true
		}
	}

	return &GroupingView{
		Config:    view.Config,
		Result:    result,
		Roles:     grouping.RolesOf(result.Groups, view.Config.Keys, headers),
		Collapsed: collapsed,
		Flat:      grouping.FlatView(result.Groups, view.Config, collapsed),
	}
}

// mergeIssues keeps every validation issue and adds coercion issues for cells
// validation did not already report, ordered by row then column
func mergeIssues(headers []string, validation, coercion []sheet.Issue) []sheet.Issue {
	type cell struct {
		row int
		col string
	}
	reported := make(map[cell]bool, len(validation))
	issues := make([]sheet.Issue, 0, len(validation)+len(coercion))
	for _, issue := range validation {
		reported[cell{issue.RowIndex, issue.ColumnName}] = true
		issues = append(issues, issue)
	}
	for _, issue := range coercion {
		if !reported[cell{issue.RowIndex, issue.ColumnName}] {
			issues = append(issues, issue)
		}
	}

	position := make(map[string]int, len(headers))
	for i, h := range headers {
		position[h] = i
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].RowIndex != issues[j].RowIndex {
			return issues[i].RowIndex < issues[j].RowIndex
		}
		return position[issues[i].ColumnName] < position[issues[j].ColumnName]
	})
	return issues
}

func headerRowOf(req PreviewRequest) int {
	if req.HeaderRow < 1 {
		return 1
	}
	return req.HeaderRow
}

func sourceHeaderMap(headers, source []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(source) {
			out[h] = source[i]
		}
	}
	return out
}
