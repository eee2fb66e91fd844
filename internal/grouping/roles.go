package grouping

import (
	"sort"

	domain "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
)

// InferParentChildRoles classifies each field as parent (constant within every
// group, ignoring blanks) or child (varies inside at least one group). Rows are
// bucketed with the default key normalization. Key fields are always parent.
// When allFields is empty the fields are taken from the rows in sorted order.
func InferParentChildRoles(rows []sheet.Row, groupKeys []string, allFields []string) domain.Roles {
	if len(allFields) == 0 {
		allFields = fieldsOf(rows)
	}
	return RolesOf(groupsOf(rows, domain.DefaultConfig(groupKeys...)), groupKeys, allFields)
}

// RolesOf classifies fields over groups already built by GroupRows
func RolesOf(groups []domain.Group, groupKeys []string, allFields []string) domain.Roles {
	buckets := make([][]sheet.Row, len(groups))
	var members []sheet.Row
	for i, g := range groups {
		buckets[i] = g.Rows
		members = append(members, g.Rows...)
	}
	if len(allFields) == 0 {
		allFields = fieldsOf(members)
	}

	isKey := make(map[string]bool, len(groupKeys))
	for _, k := range groupKeys {
		isKey[k] = true
	}

	roles := domain.Roles{ParentFields: append([]string(nil), groupKeys...)}
	for _, field := range allFields {
		if isKey[field] {
			continue
		}
		if len(members) > 0 && constantWithinBuckets(buckets, field) {
			roles.ParentFields = append(roles.ParentFields, field)
		} else {
			roles.ChildFields = append(roles.ChildFields, field)
		}
	}
	return roles
}

func constantWithinBuckets(buckets [][]sheet.Row, field string) bool {
	for _, bucket := range buckets {
		var seen string
		found := false
		for _, r := range bucket {
			v := r.Get(field)
			if v.IsBlank() {
				continue
			}
			text := v.Text()
			if !found {
				seen, found = text, true
				continue
			}
			if text != seen {
				return false
			}
		}
	}
	return true
}

func fieldsOf(rows []sheet.Row) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, r := range rows {
		for k := range r {
			if sheet.IsMetaKey(k) || seen[k] {
				continue
			}
			seen[k] = true
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

// BuildPersistedConfig derives the stored grouping configuration from the
// grouping keys and inferred roles
func BuildPersistedConfig(cfg domain.Config, roles domain.Roles, strategies map[string]domain.FieldStrategy) domain.PersistedConfig {
	pc := domain.PersistedConfig{
		GroupBy:      append([]string(nil), cfg.Keys...),
		ParentFields: append([]string(nil), roles.ParentFields...),
		ChildFields:  append([]string(nil), roles.ChildFields...),
	}
	if len(strategies) > 0 {
		pc.FieldStrategies = make(map[string]domain.FieldStrategy, len(strategies))
		for k, v := range strategies {
			pc.FieldStrategies[k] = v
		}
	}
	return pc
}
