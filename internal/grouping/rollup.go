package grouping

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	domain "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
)

// GroupRecords splits records into one parent per group plus the member
// children, bucketing with the default key normalization.
func GroupRecords(records []sheet.Row, cfg domain.PersistedConfig) domain.Rollup {
	return RollupGroups(groupsOf(records, domain.DefaultConfig(cfg.GroupBy...)), cfg)
}

// RollupGroups builds one parent per group plus the member children. Children
// carry the key fields and the child fields; parents carry the key fields and
// each parent field resolved by its strategy. Every output row is tagged with
// the group's id.
func RollupGroups(groups []domain.Group, cfg domain.PersistedConfig) domain.Rollup {
	rollup := domain.Rollup{}
	for _, g := range groups {
		bucket, groupID := g.Rows, g.GroupID
		if len(bucket) == 0 {
			continue
		}

		parent := make(sheet.Row, len(cfg.GroupBy)+len(cfg.ParentFields)+3)
		for _, k := range cfg.GroupBy {
			parent[k] = bucket[0].Get(k)
		}
		for _, field := range cfg.ParentFields {
			if _, isKey := parent[field]; isKey {
				continue
			}
			parent[field] = resolveParentField(bucket, field, cfg.FieldStrategies[field])
		}
		parent[sheet.KeyGroupID] = sheet.NewString(groupID)
		parent[sheet.KeyIsParent] = sheet.NewBoolean(true)
		parent[sheet.KeyChildrenCount] = sheet.NewNumber(float64(len(bucket)))
		rollup.Parents = append(rollup.Parents, parent)

		for _, r := range bucket {
			child := make(sheet.Row, len(cfg.GroupBy)+len(cfg.ChildFields)+1)
			for _, k := range cfg.GroupBy {
				child[k] = r.Get(k)
			}
			for _, f := range cfg.ChildFields {
				child[f] = r.Get(f)
			}
			if id, ok := r[sheet.KeyID]; ok {
				child[sheet.KeyID] = id
			}
			child[sheet.KeyGroupID] = sheet.NewString(groupID)
			rollup.Children = append(rollup.Children, child)
		}
		rollup.Stats.Groups++
	}

	rollup.Stats.Parents = len(rollup.Parents)
	rollup.Stats.Children = len(rollup.Children)
	return rollup
}

func resolveParentField(bucket []sheet.Row, field string, strategy domain.FieldStrategy) sheet.Value {
	switch strategy.Kind {
	case domain.StrategySum:
		values := make([]float64, len(bucket))
		for i, r := range bucket {
			values[i] = numberOrZero(r.Get(strategy.ChildField))
		}
		return sheet.NewNumber(floats.Sum(values))
	case domain.StrategySameAcrossGroup:
		// takes the first row's value without checking the group agrees
		return bucket[0].Get(field)
	}

	for _, r := range bucket {
		if v := r.Get(field); !v.IsBlank() {
			return v
		}
	}
	return bucket[0].Get(field)
}

func numberOrZero(v sheet.Value) float64 {
	switch v.Kind {
	case sheet.KindNumber:
		return v.Num
	case sheet.KindString:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n
		}
	}
	return 0
}
