package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
)

func orderRows() []sheet.Row {
	return []sheet.Row{
		{"Order_#": sheet.NewString("A1"), "Amount": sheet.NewNumber(1234.56)},
		{"Order_#": sheet.NewString("A1"), "Amount": sheet.NewNumber(10)},
		{"Order_#": sheet.NewString("A2"), "Amount": sheet.NewNumber(5)},
	}
}

func TestGroupRowsSynthesizesParents(t *testing.T) {
	result, err := GroupRows(orderRows(), domain.DefaultConfig("Order_#"))
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].Rows, 2)
	assert.Len(t, result.Groups[1].Rows, 1)

	flat := result.FlatWithParents
	require.Len(t, flat, 4)

	parent := flat[0]
	assert.True(t, parent.IsParent())
	assert.Equal(t, 2, parent.ChildrenCount())
	assert.Equal(t, result.Groups[0].GroupID, parent.GroupID())
	assert.Equal(t, sheet.NewString("A1"), parent.Get("Order_#"))

	assert.Equal(t, result.Groups[0].GroupID, flat[1].GroupID())
	assert.Equal(t, result.Groups[0].GroupID, flat[2].GroupID())
	assert.False(t, flat[1].IsParent())

	single := flat[3]
	assert.False(t, single.IsParent())
	assert.Empty(t, single.GroupID(), "below-threshold rows stay unchanged")
	assert.Equal(t, sheet.NewString("A2"), single.Get("Order_#"))

	assert.Equal(t, 1, result.GroupIndex[result.Groups[1].GroupID])
}

func TestGroupRowsIsIdempotent(t *testing.T) {
	cfg := domain.DefaultConfig("Order_#")
	first, err := GroupRows(orderRows(), cfg)
	require.NoError(t, err)
	second, err := GroupRows(orderRows(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.FlatWithParents, second.FlatWithParents)
	assert.Regexp(t, `^g_[0-9a-z]+$`, first.Groups[0].GroupID)
}

func TestGroupRowsKeyNormalization(t *testing.T) {
	rows := []sheet.Row{
		{"k": sheet.NewString(" Straße ")},
		{"k": sheet.NewString("STRASSE")},
		{"k": sheet.NewString("")},
		{"k": sheet.Null()},
		{},
	}

	result, err := GroupRows(rows, domain.DefaultConfig("k"))
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].Rows, 2, "case folded and trimmed")
	assert.Len(t, result.Groups[1].Rows, 3, "blank, null and missing share a bucket")

	strict := domain.Config{Keys: []string{"k"}, MinSizeForParent: 2}
	result, err = GroupRows(rows, strict)
	require.NoError(t, err)
	assert.Len(t, result.Groups, 4)
}

func TestGroupRowsDoesNotMutateInput(t *testing.T) {
	rows := orderRows()
	_, err := GroupRows(rows, domain.DefaultConfig("Order_#"))
	require.NoError(t, err)
	for _, r := range rows {
		assert.Empty(t, r.GroupID())
	}
}

func TestGroupRowsRequiresKeys(t *testing.T) {
	_, err := GroupRows(orderRows(), domain.Config{})
	assert.Error(t, err)
}

func TestCollapseAndRebuild(t *testing.T) {
	cfg := domain.DefaultConfig("Order_#")
	result, err := GroupRows(orderRows(), cfg)
	require.NoError(t, err)
	gid := result.Groups[0].GroupID

	collapsed := Collapse(result.FlatWithParents, gid)
	require.Len(t, collapsed, 2)
	assert.True(t, collapsed[0].IsParent())

	rebuilt := FlatView(result.Groups, cfg, map[string]bool{gid: true})
	assert.Equal(t, collapsed, rebuilt)
	assert.Equal(t, result.FlatWithParents, FlatView(result.Groups, cfg, nil))
}

func TestInferParentChildRoles(t *testing.T) {
	rows := []sheet.Row{
		{"order": sheet.NewString("A1"), "customer": sheet.NewString("Ana"), "sku": sheet.NewString("x"), "note": sheet.NewString("")},
		{"order": sheet.NewString("A1"), "customer": sheet.NewString("Ana"), "sku": sheet.NewString("y"), "note": sheet.NewString("gift")},
		{"order": sheet.NewString("A2"), "customer": sheet.NewString("Bo"), "sku": sheet.NewString("x")},
	}

	roles := InferParentChildRoles(rows, []string{"order"}, nil)
	assert.Equal(t, []string{"order", "customer", "note"}, roles.ParentFields)
	assert.Equal(t, []string{"sku"}, roles.ChildFields)
}

func TestInferParentChildRolesEmpty(t *testing.T) {
	roles := InferParentChildRoles(nil, []string{"order"}, []string{"order", "sku"})
	assert.Equal(t, []string{"order"}, roles.ParentFields)
	assert.Equal(t, []string{"sku"}, roles.ChildFields)
}

func TestGroupRecords(t *testing.T) {
	records := []sheet.Row{
		{"order": sheet.NewString("A1"), "customer": sheet.NewString(""), "qty": sheet.NewNumber(2), "sku": sheet.NewString("x"), "region": sheet.NewString("N")},
		{"order": sheet.NewString("A1"), "customer": sheet.NewString("Ana"), "qty": sheet.NewString("3"), "sku": sheet.NewString("y"), "region": sheet.NewString("S")},
		{"order": sheet.NewString("A2"), "customer": sheet.NewString("Bo"), "qty": sheet.NewString("n/a"), "sku": sheet.NewString("z")},
	}
	cfg := domain.PersistedConfig{
		GroupBy:      []string{"order"},
		ParentFields: []string{"order", "customer", "total", "region"},
		ChildFields:  []string{"sku", "qty"},
		FieldStrategies: map[string]domain.FieldStrategy{
			"total":  domain.SumOf("qty"),
			"region": {Kind: domain.StrategySameAcrossGroup},
		},
	}

	rollup := GroupRecords(records, cfg)

	assert.Equal(t, domain.RollupStats{Groups: 2, Parents: 2, Children: 3}, rollup.Stats)

	p := rollup.Parents[0]
	assert.Equal(t, sheet.NewString("Ana"), p.Get("customer"), "first non-blank")
	assert.Equal(t, sheet.NewNumber(5), p.Get("total"))
	assert.Equal(t, sheet.NewString("N"), p.Get("region"), "first row value")
	assert.Equal(t, 2, p.ChildrenCount())

	assert.Equal(t, sheet.NewNumber(0), rollup.Parents[1].Get("total"), "non-numeric counts as zero")

	child := rollup.Children[0]
	assert.Equal(t, p.GroupID(), child.GroupID())
	assert.ElementsMatch(t, []string{"order", "sku", "qty", sheet.KeyGroupID}, keysOf(child))
}

func TestRolesAndRollupShareKeyNormalization(t *testing.T) {
	rows := []sheet.Row{
		{"order": sheet.NewString("A1"), "sku": sheet.NewString("x")},
		{"order": sheet.NewString("a1 "), "sku": sheet.NewString("y")},
		{"order": sheet.NewString("A2"), "sku": sheet.NewString("z")},
	}
	cfg := domain.DefaultConfig("order")
	result, err := GroupRows(rows, cfg)
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)

	roles := RolesOf(result.Groups, cfg.Keys, nil)
	assert.Equal(t, []string{"sku"}, roles.ChildFields, "sku varies inside the folded A1 group")
	assert.Equal(t, roles, InferParentChildRoles(rows, cfg.Keys, nil))

	pc := BuildPersistedConfig(cfg, roles, nil)
	rollup := RollupGroups(result.Groups, pc)
	assert.Equal(t, domain.RollupStats{Groups: 2, Parents: 2, Children: 3}, rollup.Stats)
	for i, g := range result.Groups {
		assert.Equal(t, g.GroupID, rollup.Parents[i].GroupID())
	}
	assert.Equal(t, rollup, GroupRecords(rows, pc))
}

func TestBuildPersistedConfig(t *testing.T) {
	pc := BuildPersistedConfig(
		domain.DefaultConfig("order"),
		domain.Roles{ParentFields: []string{"order", "customer"}, ChildFields: []string{"sku"}},
		nil,
	)
	assert.Equal(t, []string{"order"}, pc.GroupBy)
	assert.Equal(t, []string{"order", "customer"}, pc.ParentFields)
	assert.Nil(t, pc.FieldStrategies)
}

func keysOf(r sheet.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}
