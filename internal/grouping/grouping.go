// Package grouping buckets rows by key columns, synthesizes parent rows and
// derives the persisted parent/child roll-up.
package grouping

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"sheetflow/domain/core"
	domain "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
)

// GroupIDPrefix marks synthesized group ids
const GroupIDPrefix = "g_"

// GroupRows buckets rows by their normalized key tuple and builds the flat view
// with inline parent rows. Group order is bucket-creation order and rows keep
// their input order inside a group, so the same input always yields the same
// ids and ordering.
func GroupRows(rows []sheet.Row, cfg domain.Config) (domain.Result, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Result{}, err
	}
	if cfg.MinSizeForParent <= 0 {
		cfg.MinSizeForParent = 2
	}

	result := domain.Result{Groups: groupsOf(rows, cfg), GroupIndex: make(map[string]int)}
	for i, g := range result.Groups {
		result.GroupIndex[g.GroupID] = i
	}
	result.FlatWithParents = FlatView(result.Groups, cfg, nil)
	return result, nil
}

// groupsOf buckets rows by normalized key tuple in first-seen order. Role
// inference and the saved roll-up bucket through here too, so a group id means
// the same rows in every view.
func groupsOf(rows []sheet.Row, cfg domain.Config) []domain.Group {
	norm := newKeyNormalizer(cfg)
	byBucket := make(map[string]int)
	var groups []domain.Group

	for _, row := range rows {
		parts := norm.parts(row)
		bucket := bucketKey(parts)

		i, ok := byBucket[bucket]
		if !ok {
			i = len(groups)
			byBucket[bucket] = i
			groups = append(groups, domain.Group{GroupID: GroupIDPrefix + core.StableHash(bucket), KeyParts: parts})
		}
		groups[i].Rows = append(groups[i].Rows, row.Clone())
	}
	return groups
}

// FlatView rebuilds the flat list from groups. Groups named in collapsed show
// only their parent row. Groups below MinSizeForParent contribute their rows
// unchanged.
func FlatView(groups []domain.Group, cfg domain.Config, collapsed map[string]bool) []sheet.Row {
	minSize := cfg.MinSizeForParent
	if minSize <= 0 {
		minSize = 2
	}

	var flat []sheet.Row
	for _, g := range groups {
		if len(g.Rows) < minSize {
			flat = append(flat, sheet.CloneRows(g.Rows)...)
			continue
		}

		flat = append(flat, parentRow(g, cfg.Keys))
		if collapsed[g.GroupID] {
			continue
		}
		for _, r := range g.Rows {
			child := r.Clone()
			child[sheet.KeyGroupID] = sheet.NewString(g.GroupID)
			flat = append(flat, child)
		}
	}
	return flat
}

func parentRow(g domain.Group, keys []string) sheet.Row {
	first := g.Rows[0]
	parent := make(sheet.Row, len(keys)+4)
	for _, k := range keys {
		parent[k] = first.Get(k)
	}
	parent[sheet.KeyID] = sheet.NewString(g.GroupID)
	parent[sheet.KeyGroupID] = sheet.NewString(g.GroupID)
	parent[sheet.KeyIsParent] = sheet.NewBoolean(true)
	parent[sheet.KeyChildrenCount] = sheet.NewNumber(float64(len(g.Rows)))
	return parent
}

// Collapse drops the children of groupID from flat, keeping its parent row
func Collapse(flat []sheet.Row, groupID string) []sheet.Row {
	out := make([]sheet.Row, 0, len(flat))
	for _, r := range flat {
		if r.GroupID() == groupID && !r.IsParent() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// keySeparator joins key values; the unit separator does not occur in sheet text
const keySeparator = "\x1f"

type keyNormalizer struct {
	cfg  domain.Config
	fold cases.Caser
}

func newKeyNormalizer(cfg domain.Config) *keyNormalizer {
	return &keyNormalizer{cfg: cfg, fold: cases.Fold()}
}

func (n *keyNormalizer) parts(row sheet.Row) []sheet.Value {
	parts := make([]sheet.Value, len(n.cfg.Keys))
	for i, k := range n.cfg.Keys {
		parts[i] = n.normalize(row.Get(k))
	}
	return parts
}

func (n *keyNormalizer) normalize(v sheet.Value) sheet.Value {
	if n.cfg.TreatNullUndefinedEmptyAsSame && v.IsBlank() {
		return sheet.Null()
	}
	if v.Kind != sheet.KindString {
		return v
	}
	s := v.Str
	if n.cfg.TrimStrings {
		s = strings.TrimSpace(s)
	}
	if n.cfg.CaseInsensitive {
		s = n.fold.String(s)
	}
	return sheet.NewString(s)
}

func bucketKey(parts []sheet.Value) string {
	b, err := json.Marshal(parts)
	if err != nil {
		// Value always encodes; fall back to display text joined
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = p.Text()
		}
		return strings.Join(texts, keySeparator)
	}
	return string(b)
}
