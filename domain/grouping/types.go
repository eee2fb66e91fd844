package grouping

import (
	"bytes"
	"encoding/json"
	"fmt"

	"sheetflow/domain/sheet"
)

// Config controls how rows are bucketed by key columns
type Config struct {
	Keys                          []string `json:"keys"`
	MinSizeForParent              int      `json:"min_size_for_parent"`
	CaseInsensitive               bool     `json:"case_insensitive"`
	TrimStrings                   bool     `json:"trim_strings"`
	TreatNullUndefinedEmptyAsSame bool     `json:"treat_null_undefined_empty_as_same"`
}

// DefaultConfig returns a config over keys with the standard defaults
func DefaultConfig(keys ...string) Config {
	return Config{
		Keys:                          keys,
		MinSizeForParent:              2,
		CaseInsensitive:               true,
		TrimStrings:                   true,
		TreatNullUndefinedEmptyAsSame: true,
	}
}

// Validate checks that grouping has at least one key
func (c Config) Validate() error {
	if len(c.Keys) == 0 {
		return fmt.Errorf("grouping requires at least one key column")
	}
	return nil
}

// Group is one bucket of rows sharing a normalized key tuple
type Group struct {
	GroupID  string        `json:"group_id"`
	KeyParts []sheet.Value `json:"key_parts"`
	Rows     []sheet.Row   `json:"rows"`
}

// Result is the output of grouping a row set
type Result struct {
	Groups          []Group        `json:"groups"`
	GroupIndex      map[string]int `json:"group_index"` // groupId -> position in Groups
	FlatWithParents []sheet.Row    `json:"flat_with_parents"`
}

// Roles splits fields into parent (constant per group) and child (varies) fields
type Roles struct {
	ParentFields []string `json:"parentFields"`
	ChildFields  []string `json:"childFields"`
}

// StrategyKind names how a parent field value is resolved
type StrategyKind string

const (
	StrategyFirstNonBlank   StrategyKind = "firstNonBlank"
	StrategySameAcrossGroup StrategyKind = "sameAcrossGroup"
	StrategySum             StrategyKind = "sum"
)

// FieldStrategy is either a bare strategy name or {"kind":"sum","childField":...}
type FieldStrategy struct {
	Kind       StrategyKind
	ChildField string
}

// SumOf returns a sum strategy over a child field
func SumOf(childField string) FieldStrategy {
	return FieldStrategy{Kind: StrategySum, ChildField: childField}
}

type sumStrategyJSON struct {
	Kind       StrategyKind `json:"kind"`
	ChildField string       `json:"childField"`
}

// MarshalJSON writes the persisted union form
func (s FieldStrategy) MarshalJSON() ([]byte, error) {
	if s.Kind == StrategySum {
		return json.Marshal(sumStrategyJSON{Kind: s.Kind, ChildField: s.ChildField})
	}
	kind := s.Kind
	if kind == "" {
		kind = StrategyFirstNonBlank
	}
	return json.Marshal(string(kind))
}

// UnmarshalJSON reads either union form
func (s *FieldStrategy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch StrategyKind(name) {
		case StrategyFirstNonBlank, StrategySameAcrossGroup:
			*s = FieldStrategy{Kind: StrategyKind(name)}
			return nil
		}
		return fmt.Errorf("unknown field strategy %q", name)
	}
	var obj sumStrategyJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid field strategy: %w", err)
	}
	if obj.Kind != StrategySum || obj.ChildField == "" {
		return fmt.Errorf("invalid field strategy object: kind=%q childField=%q", obj.Kind, obj.ChildField)
	}
	*s = FieldStrategy{Kind: StrategySum, ChildField: obj.ChildField}
	return nil
}

// PersistedConfig is the grouping configuration stored in datasets.grouping_config.
// Its JSON shape is shared with stored data and must not change.
type PersistedConfig struct {
	GroupBy         []string                 `json:"groupBy"`
	ParentFields    []string                 `json:"parentFields"`
	ChildFields     []string                 `json:"childFields"`
	FieldStrategies map[string]FieldStrategy `json:"fieldStrategies,omitempty"`
}

// MarshalJSON keeps empty field lists as [] rather than null
func (p PersistedConfig) MarshalJSON() ([]byte, error) {
	type alias PersistedConfig
	out := alias(p)
	if out.GroupBy == nil {
		out.GroupBy = []string{}
	}
	if out.ParentFields == nil {
		out.ParentFields = []string{}
	}
	if out.ChildFields == nil {
		out.ChildFields = []string{}
	}
	return json.Marshal(out)
}

// RollupStats counts the output of a roll-up
type RollupStats struct {
	Groups   int `json:"groups"`
	Parents  int `json:"parents"`
	Children int `json:"children"`
}

// Rollup is the parent/child split of a record set
type Rollup struct {
	Parents  []sheet.Row `json:"parents"`
	Children []sheet.Row `json:"children"`
	Stats    RollupStats `json:"stats"`
}
