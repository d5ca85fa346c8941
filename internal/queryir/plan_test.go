package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/delegate/internal/ir"
)

var accountsType = ir.TableOf(
	ir.Field{Name: "accountid", Type: ir.Scalar(ir.KindGuid)},
	ir.Field{Name: "name", Type: ir.Scalar(ir.KindString)},
	ir.Field{Name: "revenue", Type: ir.Scalar(ir.KindNumber)},
)

func accounts() *ir.Ref {
	return &ir.Ref{Meta: ir.Meta{T: accountsType}, Symbol: ir.Symbol{Name: "Accounts", Kind: ir.SymbolTable}}
}

func num(n int64) *ir.Literal {
	return &ir.Literal{Meta: ir.Meta{T: ir.Scalar(ir.KindNumber)}, Value: ir.Int(n)}
}

func str(s string) *ir.Literal {
	return &ir.Literal{Meta: ir.Meta{T: ir.Scalar(ir.KindString)}, Value: ir.String(s)}
}

func TestEncodeDecodeSingle(t *testing.T) {
	r := Retrieve{
		Shape:  ShapeSingle,
		Table:  accounts(),
		Filter: &Compare{Field: "revenue", Op: Gt, Value: num(1000)},
		Top:    num(1),
		Type:   accountsType.Row(),
		Span:   ir.Span{Start: 0, End: 40},
	}

	call := Encode(r)
	assert.Equal(t, ir.FuncRetrieveSingle, call.Func)
	require.Len(t, call.Args, 7)
	assert.Equal(t, "__retrieveSingle(Accounts, revenue > 1000, _, _, _, 1, _)", ir.Format(call))
	assert.True(t, IsPlan(call))

	got, err := Decode(call)
	require.NoError(t, err)
	assert.Equal(t, ShapeSingle, got.Shape)
	assert.Same(t, r.Table, got.Table)
	assert.True(t, EqualPredicate(r.Filter, got.Filter))
	assert.Same(t, r.Top, got.Top)
	assert.Nil(t, got.OrderBy)
	assert.Nil(t, got.Columns)
	assert.Equal(t, r.Span, got.Span)
}

func TestEncodeDecodeManyWithCeiling(t *testing.T) {
	r := Retrieve{
		Shape:   ShapeMany,
		Table:   accounts(),
		OrderBy: OrderBy{{Field: "name"}, {Field: "revenue", Descending: true}},
		Ceiling: 500,
		Columns: ColumnMap{"name", "revenue"},
		Type:    accountsType,
	}

	call := Encode(r)
	assert.Equal(t, "__retrieveMultiple(Accounts, _, order by name asc, revenue desc, _, _, ceiling 500, columns name, revenue)", ir.Format(call))

	got, err := Decode(call)
	require.NoError(t, err)
	assert.Nil(t, got.Top)
	assert.Equal(t, 500, got.Ceiling)
	assert.Equal(t, r.OrderBy, got.OrderBy)
	assert.Equal(t, r.Columns, got.Columns)
	assert.Equal(t, CapSort|CapColumnProjection, got.Requires())
}

func TestEncodeDecodeAggregate(t *testing.T) {
	r := Retrieve{
		Shape:     ShapeAggregate,
		Table:     accounts(),
		Filter:    &StartsWith{Field: "name", Prefix: str("Con")},
		Aggregate: AggregateCount,
		Type:      ir.Scalar(ir.KindNumber),
	}
	call := Encode(r)
	require.Len(t, call.Args, 8)
	assert.Equal(t, `__retrieveAggregate(Accounts, StartsWith(name, "Con"), _, _, _, _, _, aggregate count)`, ir.Format(call))

	got, err := Decode(call)
	require.NoError(t, err)
	assert.Equal(t, AggregateCount, got.Aggregate)
	assert.Equal(t, 0, got.Ceiling)
	assert.Equal(t, CapFilter|CapCount, got.Requires())
}

func TestEncodeDecodeByKey(t *testing.T) {
	key := &ir.Literal{Meta: ir.Meta{T: ir.Scalar(ir.KindGuid)}, Value: ir.MustGuid("6ba7b810-9dad-11d1-80b4-00c04fd430c8")}
	call := Encode(Retrieve{Shape: ShapeByKey, Table: accounts(), Key: key, Type: accountsType.Row()})
	assert.Equal(t, ir.FuncRetrieveByKey, call.Func)
	require.Len(t, call.Args, 3)

	got, err := Decode(call)
	require.NoError(t, err)
	assert.Same(t, key, got.Key)
	assert.Equal(t, CapFilter, got.Requires())
}

func TestDecodeErrors(t *testing.T) {
	good := Encode(Retrieve{Shape: ShapeMany, Table: accounts(), Ceiling: 10})

	tests := []struct {
		name string
		call *ir.Call
	}{
		{"not a plan", &ir.Call{Func: ir.FuncFilter, Args: good.Args}},
		{"arity", &ir.Call{Func: ir.FuncRetrieveMany, Args: good.Args[:3]}},
		{"table not a ref", &ir.Call{Func: ir.FuncRetrieveMany, Args: replaceArg(good.Args, 0, num(1))}},
		{"filter not embedded", &ir.Call{Func: ir.FuncRetrieveMany, Args: replaceArg(good.Args, 1, num(1))}},
		{"wrong fragment", &ir.Call{Func: ir.FuncRetrieveMany, Args: replaceArg(good.Args, 2, &ir.Embedded{Value: ColumnMap{"a"}})}},
		{"join present", &ir.Call{Func: ir.FuncRetrieveMany, Args: replaceArg(good.Args, 3, &ir.Embedded{Value: ColumnMap{"a"}})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.call)
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func replaceArg(args []ir.Node, i int, n ir.Node) []ir.Node {
	out := append([]ir.Node(nil), args...)
	out[i] = n
	return out
}

func TestRequires(t *testing.T) {
	r := Retrieve{Shape: ShapeSingle, Table: accounts(), Filter: &Compare{Field: "a", Value: num(1)}, Top: num(1)}
	assert.Equal(t, CapFilter|CapTop, r.Requires())

	r = Retrieve{Shape: ShapeMany, Table: accounts(), Ceiling: 100}
	assert.Equal(t, CapNone, r.Requires())
}

func TestCheckCapabilities(t *testing.T) {
	r := Retrieve{Shape: ShapeSingle, Table: accounts(), Filter: &Compare{Field: "a", Value: num(1)}, Top: num(1)}
	assert.NoError(t, CheckCapabilities(r, CapFilter|CapTop|CapSort))

	err := CheckCapabilities(r, CapFilter)
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCapabilityMissing, ce.Code)
	assert.Equal(t, "Accounts", ce.Table)
	assert.Equal(t, CapTop, ce.Missing)
	assert.Contains(t, err.Error(), "top")
}

func TestValidate(t *testing.T) {
	ok := Validate(Retrieve{Shape: ShapeMany, Table: accounts(), Ceiling: 5})
	assert.True(t, ok.IsWellFormed)
	assert.Empty(t, ok.Problems)

	bad := Validate(Retrieve{
		Shape:   ShapeMany,
		Filter:  &And{Predicates: []Predicate{&Compare{Field: "", Value: nil}}},
		OrderBy: OrderBy{{Field: "a"}, {Field: "a"}},
		Columns: ColumnMap{"x", "x"},
	})
	assert.False(t, bad.IsWellFormed)
	assert.Equal(t, []string{
		"plan has no source table",
		"many plan needs a row limit or a positive row ceiling",
		"And needs at least two predicates, got 1",
		"comparison without a field",
		`comparison on field "" has no value`,
		`field "a" sorted twice`,
		`column "x" projected twice`,
	}, bad.Problems)

	byKey := Validate(Retrieve{Shape: ShapeByKey, Table: accounts()})
	assert.Equal(t, []string{"by_key plan has no key"}, byKey.Problems)
}
