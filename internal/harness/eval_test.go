package harness

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/store"
	"github.com/roach88/delegate/internal/testutil"
)

func TestCompare_Blank(t *testing.T) {
	tests := []struct {
		name string
		op   ir.BinaryOp
		l, r ir.Value
		want bool
	}{
		{"blank equals blank", ir.OpEq, ir.Null{}, ir.Null{}, true},
		{"blank never equals a value", ir.OpEq, ir.Null{}, ir.Int(0), false},
		{"blank differs from a value", ir.OpNeq, ir.String("a"), ir.Null{}, true},
		{"ordering with blank is false", ir.OpLt, ir.Null{}, ir.Int(5), false},
		{"ordering with blank is false either side", ir.OpGte, ir.Int(5), ir.Null{}, false},
		{"int and decimal compare exactly", ir.OpEq, ir.Int(3), ir.Decimal("3.0"), true},
		{"decimal ordering", ir.OpGt, ir.Decimal("2500.5"), ir.Int(2500), true},
		{"text by bytes", ir.OpLt, ir.String("Ada"), ir.String("ada"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compare(tt.op, tt.l, tt.r)
			require.NoError(t, err)
			assert.Equal(t, ir.Bool(tt.want), got)
		})
	}

	_, err := compare(ir.OpLt, ir.String("a"), ir.Int(1))
	assert.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	got, err := arithmetic(ir.OpAdd, ir.Decimal("0.1"), ir.Decimal("0.2"))
	require.NoError(t, err)
	assert.Equal(t, ir.Decimal("0.3"), got)

	got, err = arithmetic(ir.OpMul, ir.Decimal("2.5"), ir.Int(2))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(5), got)

	got, err = arithmetic(ir.OpSub, ir.Null{}, ir.Int(2))
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, got)

	_, err = arithmetic(ir.OpDiv, ir.Int(1), ir.Int(0))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	rec := &Record{
		Columns: []string{"name", "revenue", "ownerid"},
		Fields: map[string]any{
			"name":    ir.String("Beta"),
			"revenue": ir.Decimal("1200.00"),
			"ownerid": ir.Null{},
		},
	}
	assert.Equal(t, `{name: "Beta", revenue: 1200, ownerid: Blank()}`, Render(rec))
	assert.Equal(t, `[]`, Render(&Table{Columns: rec.Columns}))
	assert.Equal(t, `[{name: "Beta", revenue: 1200, ownerid: Blank()}]`, Render(&Table{Columns: rec.Columns, Rows: []*Record{rec}}))
	assert.Equal(t, "Blank()", Render(nil))
	assert.Equal(t, "2.5", Render(ir.Decimal("2.50")))
}

func TestAsciiLower(t *testing.T) {
	assert.Equal(t, "ada lovelace", asciiLower("Ada LOVELACE"))
	assert.Equal(t, "Ärger", asciiLower("Ärger"))
}

func newContactsStore(t *testing.T) (*store.Store, map[string]*metadata.Table) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	contacts := testutil.Contacts()
	require.NoError(t, st.CreateTable(ctx, contacts))
	guid := func(s string) ir.Guid {
		g, err := ir.ParseGuid(s)
		require.NoError(t, err)
		return g
	}
	require.NoError(t, st.Insert(ctx, "Contacts", []store.Row{
		{"contactid": guid("c0000000-0000-0000-0000-000000000002"), "fullname": ir.String("Grace"), "age": ir.Int(85)},
		{"contactid": guid("c0000000-0000-0000-0000-000000000001"), "fullname": ir.String("Ada"), "age": ir.Int(36)},
		{"contactid": guid("c0000000-0000-0000-0000-000000000003"), "fullname": ir.String("Linus")},
	}))
	return st, map[string]*metadata.Table{"Contacts": contacts}
}

func TestEvaluator_LocalScan(t *testing.T) {
	st, tables := newContactsStore(t)
	e := newEvaluator(context.Background(), st, tables, nil)

	b := testutil.NewBuilder()
	tree := b.ShowColumns(b.Filter(b.Table(testutil.Contacts()), func(r testutil.Row) ir.Node {
		return b.Bin(ir.OpLt, r.Col("age"), b.Num(50))
	}), "fullname", "age")

	got, err := e.eval(tree)
	require.NoError(t, err)

	want := &Table{
		Columns: []string{"fullname", "age"},
		Rows: []*Record{
			{Columns: []string{"fullname", "age"}, Fields: map[string]any{"fullname": ir.String("Ada"), "age": ir.Int(36)}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filtered table mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, e.queries, 1)
	assert.Equal(t, `SELECT "contactid", "fullname", "accountid", "age" FROM "Contacts" ORDER BY "contactid" COLLATE BINARY ASC`, e.queries[0].SQL)
	assert.Empty(t, e.queries[0].Params)
}

func TestEvaluator_SortBlankFirst(t *testing.T) {
	st, tables := newContactsStore(t)
	e := newEvaluator(context.Background(), st, tables, nil)

	b := testutil.NewBuilder()
	got, err := e.eval(b.SortByColumns(b.Table(testutil.Contacts()), "age", false))
	require.NoError(t, err)

	sorted, ok := got.(*Table)
	require.True(t, ok)
	var names []string
	for _, r := range sorted.Rows {
		names = append(names, string(r.Fields["fullname"].(ir.String)))
	}
	assert.Equal(t, []string{"Linus", "Ada", "Grace"}, names)
}

func TestEvaluator_SortMultipleKeys(t *testing.T) {
	st, tables := newContactsStore(t)
	e := newEvaluator(context.Background(), st, tables, nil)

	b := testutil.NewBuilder()
	got, err := e.eval(b.SortByKeys(b.Table(testutil.Contacts()), "age", "Descending", "fullname"))
	require.NoError(t, err)

	var names []string
	for _, r := range got.(*Table).Rows {
		names = append(names, string(r.Fields["fullname"].(ir.String)))
	}
	assert.Equal(t, []string{"Grace", "Ada", "Linus"}, names)
}

func TestEvaluator_Notify(t *testing.T) {
	st, tables := newContactsStore(t)
	e := newEvaluator(context.Background(), st, tables, nil)

	b := testutil.NewBuilder()
	got, err := e.eval(b.Filter(b.Table(testutil.Contacts()), func(testutil.Row) ir.Node {
		return b.Notify("seen")
	}))
	require.NoError(t, err)
	assert.Len(t, got.(*Table).Rows, 3)
	assert.Equal(t, []string{"seen", "seen", "seen"}, e.notifications)
}
