// Package merge assigns content-derived row ids and reconciles a stored row
// set with freshly fetched rows.
package merge

import (
	"strconv"
	"strings"

	"sheetflow/domain/core"
	"sheetflow/domain/sheet"
)

// DefaultIDFields are the fields the default id key is built from
var DefaultIDFields = []string{"orderNumber", "productCode"}

// IDKeyFunc builds the identity string of a row
type IDKeyFunc func(sheet.Row) string

// FieldsKey joins the display text of fields with '|'
func FieldsKey(fields ...string) IDKeyFunc {
	fields = append([]string(nil), fields...)
	return func(r sheet.Row) string {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = r.Get(f).Text()
		}
		return strings.Join(parts, "|")
	}
}

// DefaultIDKey is FieldsKey over DefaultIDFields
func DefaultIDKey() IDKeyFunc {
	return FieldsKey(DefaultIDFields...)
}

// MakeID hashes the identity key of a row
func MakeID(r sheet.Row, key IDKeyFunc) string {
	return core.StableHash(key(r))
}

// AttachIDs returns copies of rows carrying their stable __id. Rows sharing an
// identity key are told apart by occurrence: the first keeps MakeID, the n-th
// repeat hashes the key with "#n" appended.
func AttachIDs(rows []sheet.Row, key IDKeyFunc) []sheet.Row {
	if key == nil {
		key = DefaultIDKey()
	}
	ids := newIDAssigner(key)
	out := make([]sheet.Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		c[sheet.KeyID] = sheet.NewString(ids.next(r))
		out[i] = c
	}
	return out
}

type idAssigner struct {
	key  IDKeyFunc
	seen map[string]int
}

func newIDAssigner(key IDKeyFunc) *idAssigner {
	return &idAssigner{key: key, seen: make(map[string]int)}
}

func (a *idAssigner) next(r sheet.Row) string {
	k := a.key(r)
	n := a.seen[k]
	a.seen[k] = n + 1
	if n == 0 {
		return MakeID(r, a.key)
	}
	return core.StableHash(k + "#" + strconv.Itoa(n))
}

// Options controls UpsertMerge
type Options struct {
	IDKey       IDKeyFunc
	Preserve    []string // fields whose existing value survives a merge
	DropMissing bool     // keep only ids present in incoming
}

// UpsertMerge merges incoming over existing by row id. Rows without an __id
// get one from opts.IDKey, numbered by occurrence like AttachIDs. Existing rows keep their order, new rows are
// appended in incoming order. Matched rows take every incoming field except
// the preserved ones.
func UpsertMerge(existing, incoming []sheet.Row, opts Options) []sheet.Row {
	key := opts.IDKey
	if key == nil {
		key = DefaultIDKey()
	}

	merged := make([]sheet.Row, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing))
	existingIDs := newIDAssigner(key)
	for _, r := range existing {
		c := r.Clone()
		id := r.ID()
		if id == "" {
			id = existingIDs.next(r)
			c[sheet.KeyID] = sheet.NewString(id)
		}
		if i, dup := index[id]; dup {
			merged[i] = c
			continue
		}
		index[id] = len(merged)
		merged = append(merged, c)
	}

	seen := make(map[string]bool, len(incoming))
	incomingIDs := newIDAssigner(key)
	for _, in := range incoming {
		r := in.Clone()
		id := in.ID()
		if id == "" {
			id = incomingIDs.next(in)
			r[sheet.KeyID] = sheet.NewString(id)
		}
		seen[id] = true

		i, ok := index[id]
		if !ok {
			index[id] = len(merged)
			merged = append(merged, r)
			continue
		}

		old := merged[i]
		next := old.Clone()
		for k, v := range r {
			next[k] = v
		}
		for _, f := range opts.Preserve {
			if v, had := old[f]; had {
				next[f] = v
			}
		}
		merged[i] = next
	}

	if !opts.DropMissing {
		return merged
	}
	kept := merged[:0]
	for _, r := range merged {
		if seen[r.ID()] {
			kept = append(kept, r)
		}
	}
	return kept
}
