package querysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
	"github.com/roach88/delegate/internal/testutil"
)

// literalResolver evaluates literals and looks up named lists.
type literalResolver struct {
	lists map[string][]ir.Value
}

func (r literalResolver) Scalar(n ir.Node) (ir.Value, error) {
	lit, ok := n.(*ir.Literal)
	if !ok {
		return nil, errors.New("not a literal")
	}
	return lit.Value, nil
}

func (r literalResolver) List(n ir.Node) ([]ir.Value, error) {
	ref, ok := n.(*ir.Ref)
	if !ok {
		return nil, errors.New("not a reference")
	}
	return r.lists[ref.Symbol.Name], nil
}

func retrieve(b *testutil.Builder, shape queryir.Shape) queryir.Retrieve {
	return queryir.Retrieve{Shape: shape, Table: b.Table(testutil.Contacts())}
}

func TestCompile_ManyWithCeiling(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeMany)
	r.Ceiling = 500
	r.Filter = &queryir.Compare{Field: "age", Op: queryir.Gt, Value: b.Num(18)}

	sql, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "contactid", "fullname", "accountid", "age" FROM "Contacts" WHERE "age" > ? ORDER BY "contactid" COLLATE BINARY ASC LIMIT ?`,
		sql)
	assert.Equal(t, []any{int64(18), int64(500)}, params)
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeMany)
	r.Ceiling = 10
	r.Filter = &queryir.Compare{Field: "fullname", Op: queryir.Eq, Value: b.Str("Robert'); DROP TABLE Contacts;--")}

	sql, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, "Robert'); DROP TABLE Contacts;--", params[0])
}

func TestCompile_OrderByRequestedKeysThenPrimaryKey(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeMany)
	r.Ceiling = 5
	r.OrderBy = queryir.OrderBy{{Field: "age", Descending: true}, {Field: "fullname"}}

	sql, _, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Contains(t, sql,
		`ORDER BY "age" COLLATE BINARY DESC, "fullname" COLLATE BINARY ASC, "contactid" COLLATE BINARY ASC LIMIT ?`)

	r.OrderBy = queryir.OrderBy{{Field: "contactid", Descending: true}}
	sql, _, err = NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY "contactid" COLLATE BINARY DESC LIMIT ?`)
}

func TestCompile_SingleWithTopAndColumns(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeSingle)
	r.Top = b.Num(1)
	r.Columns = queryir.ColumnMap{"fullname"}

	sql, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Equal(t, `SELECT "fullname" FROM "Contacts" ORDER BY "contactid" COLLATE BINARY ASC LIMIT ?`, sql)
	assert.Equal(t, []any{int64(1)}, params)
}

func TestCompile_NegativeLimitSelectsNothing(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeMany)
	r.Top = b.Num(-3)

	_, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, params)
}

func TestCompile_ByKey(t *testing.T) {
	b := testutil.NewBuilder()
	key := testutil.Key("Contacts", 1)
	r := retrieve(b, queryir.ShapeByKey)
	r.Key = b.Guid(key)

	sql, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Equal(t, `SELECT "contactid", "fullname", "accountid", "age" FROM "Contacts" WHERE "contactid" = ? LIMIT 1`, sql)
	assert.Equal(t, []any{key.String()}, params)
}

func TestCompile_Aggregate(t *testing.T) {
	b := testutil.NewBuilder()
	r := retrieve(b, queryir.ShapeAggregate)
	r.Aggregate = queryir.AggregateCount
	r.Filter = &queryir.Compare{Field: "age", Op: queryir.Gte, Value: b.Num(65)}

	sql, params, err := NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "Contacts" WHERE "age" >= ?`, sql)
	assert.Equal(t, []any{int64(65)}, params)

	r.Top = b.Num(3)
	sql, params, err = NewSQLCompiler(literalResolver{}).Compile(r, testutil.Contacts())
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT 1 FROM "Contacts" WHERE "age" >= ? ORDER BY "contactid" COLLATE BINARY ASC LIMIT ?)`,
		sql)
	assert.Equal(t, []any{int64(65), int64(3)}, params)
}

func TestCompile_Predicates(t *testing.T) {
	b := testutil.NewBuilder()
	names := b.Var("Names", ir.TableOf(ir.Field{Name: "Value", Type: ir.Scalar(ir.KindString)}))
	empty := b.Var("Empty", names.Type())
	res := literalResolver{lists: map[string][]ir.Value{
		"Names": {ir.String("Ada"), ir.String("Grace")},
	}}

	tests := []struct {
		name   string
		pred   queryir.Predicate
		where  string
		params []any
	}{
		{
			name:   "starts with escapes wildcards",
			pred:   &queryir.StartsWith{Field: "fullname", Prefix: b.Str("50%_")},
			where:  `WHERE "fullname" LIKE ? ESCAPE '\'`,
			params: []any{`50\%\_%`},
		},
		{
			name:   "ends with",
			pred:   &queryir.EndsWith{Field: "fullname", Suffix: b.Str("son")},
			where:  `WHERE "fullname" LIKE ? ESCAPE '\'`,
			params: []any{"%son"},
		},
		{
			name:   "in",
			pred:   &queryir.In{Field: "fullname", Set: names},
			where:  `WHERE "fullname" IN (?, ?)`,
			params: []any{"Ada", "Grace"},
		},
		{
			name:  "in empty set",
			pred:  &queryir.In{Field: "fullname", Set: empty},
			where: `WHERE 0 = 1`,
		},
		{
			name: "or inside and",
			pred: &queryir.And{Predicates: []queryir.Predicate{
				&queryir.Compare{Field: "age", Op: queryir.Gt, Value: b.Num(18)},
				&queryir.Or{Predicates: []queryir.Predicate{
					&queryir.Compare{Field: "fullname", Op: queryir.Eq, Value: b.Str("Ada")},
					&queryir.Compare{Field: "fullname", Op: queryir.Neq, Value: b.Str("Bob")},
				}},
			}},
			where:  `WHERE ("age" > ? AND ("fullname" = ? OR ("fullname" <> ? OR "fullname" IS NULL)))`,
			params: []any{int64(18), "Ada", "Bob"},
		},
		{
			name:   "blank equality",
			pred:   &queryir.Compare{Field: "accountid", Op: queryir.Eq, Value: b.Lit(ir.Null{})},
			where:  `WHERE "accountid" IS ?`,
			params: []any{nil},
		},
		{
			name:   "blank inequality",
			pred:   &queryir.Compare{Field: "accountid", Op: queryir.Neq, Value: b.Lit(ir.Null{})},
			where:  `WHERE "accountid" IS NOT ?`,
			params: []any{nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := retrieve(b, queryir.ShapeAggregate)
			r.Aggregate = queryir.AggregateCount
			r.Filter = tt.pred

			sql, params, err := NewSQLCompiler(res).Compile(r, testutil.Contacts())
			require.NoError(t, err)
			assert.Equal(t, `SELECT COUNT(*) FROM "Contacts" `+tt.where, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	b := testutil.NewBuilder()

	unknown := retrieve(b, queryir.ShapeMany)
	unknown.Filter = &queryir.Compare{Field: "nope", Op: queryir.Eq, Value: b.Num(1)}
	_, _, err := NewSQLCompiler(literalResolver{}).Compile(unknown, testutil.Contacts())
	assert.ErrorContains(t, err, `no column "nope"`)

	_, _, err = NewSQLCompiler(literalResolver{}).Compile(retrieve(b, queryir.ShapeMany), testutil.Accounts())
	assert.ErrorContains(t, err, `plan reads "Contacts"`)

	_, _, err = NewSQLCompiler(literalResolver{}).Compile(retrieve(b, queryir.ShapeMany), nil)
	assert.Error(t, err)

	dynamic := retrieve(b, queryir.ShapeMany)
	dynamic.Top = b.Var("n", ir.Scalar(ir.KindNumber))
	_, _, err = NewSQLCompiler(literalResolver{}).Compile(dynamic, testutil.Contacts())
	assert.ErrorContains(t, err, "resolve row limit")

	text := retrieve(b, queryir.ShapeMany)
	text.Filter = &queryir.StartsWith{Field: "fullname", Prefix: b.Num(1)}
	_, _, err = NewSQLCompiler(literalResolver{}).Compile(text, testutil.Contacts())
	assert.ErrorContains(t, err, "must be text")
}
