package sheet

// Reserved row keys carried alongside column data
const (
	KeyID            = "__id"
	KeyGroupID       = "__groupId"
	KeyIsParent      = "__isParent"
	KeyChildrenCount = "__childrenCount"
)

// IsMetaKey reports whether key is one of the reserved row keys
func IsMetaKey(key string) bool {
	switch key {
	case KeyID, KeyGroupID, KeyIsParent, KeyChildrenCount:
		return true
	}
	return false
}

// Row maps column name to value. Rows are copied on every transform so that
// no two snapshots share one.
type Row map[string]Value

// Clone returns a shallow copy of the row (values are immutable)
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value for key, or null when absent
func (r Row) Get(key string) Value {
	if v, ok := r[key]; ok {
		return v
	}
	return Null()
}

// ID returns the stable row id, or "" when none was attached
func (r Row) ID() string {
	v := r.Get(KeyID)
	if v.Kind != KindString {
		return ""
	}
	return v.Str
}

// GroupID returns the group this row belongs to, or ""
func (r Row) GroupID() string {
	v := r.Get(KeyGroupID)
	if v.Kind != KindString {
		return ""
	}
	return v.Str
}

// IsParent reports whether the row is a synthesized group parent
func (r Row) IsParent() bool {
	v := r.Get(KeyIsParent)
	return v.Kind == KindBoolean && v.Bool
}

// ChildrenCount returns the number of children of a parent row
func (r Row) ChildrenCount() int {
	v := r.Get(KeyChildrenCount)
	if v.Kind != KindNumber {
		return 0
	}
	return int(v.Num)
}

// Data returns a copy of the row without reserved keys
func (r Row) Data() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if !IsMetaKey(k) {
			out[k] = v
		}
	}
	return out
}

// Map returns the row as plain Go scalars, for JSON storage
func (r Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		out[k] = v.Interface()
	}
	return out
}

// CloneRows copies every row in rows
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
