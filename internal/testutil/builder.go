package testutil

import (
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
)

// Builder constructs bound trees the way a binder would: every node typed,
// every node with its own span, every row-scoped call with a fresh scope.
type Builder struct {
	clock *SpanClock
}

// NewBuilder returns a builder with a fresh SpanClock.
func NewBuilder() *Builder {
	return &Builder{clock: NewSpanClock()}
}

func (b *Builder) meta(t ir.Type) ir.Meta {
	return ir.Meta{T: t, At: b.clock.NextSpan()}
}

// Table references a remote table.
func (b *Builder) Table(t *metadata.Table) *ir.Ref {
	return &ir.Ref{Meta: b.meta(t.Type()), Symbol: ir.Symbol{Name: t.Name, Kind: ir.SymbolTable}}
}

// Var references a variable of the given type.
func (b *Builder) Var(name string, t ir.Type) *ir.Ref {
	return &ir.Ref{Meta: b.meta(t), Symbol: ir.Symbol{Name: name, Kind: ir.SymbolVariable}}
}

// Lit builds a literal typed by its value's kind.
func (b *Builder) Lit(v ir.Value) *ir.Literal {
	return &ir.Literal{Meta: b.meta(ir.Scalar(v.Kind())), Value: v}
}

// Num builds a number literal.
func (b *Builder) Num(n int64) *ir.Literal { return b.Lit(ir.Int(n)) }

// Str builds a string literal.
func (b *Builder) Str(s string) *ir.Literal { return b.Lit(ir.String(s)) }

// Bool builds a boolean literal.
func (b *Builder) Bool(v bool) *ir.Literal { return b.Lit(ir.Bool(v)) }

// Guid builds a guid literal.
func (b *Builder) Guid(g ir.Guid) *ir.Literal { return b.Lit(g) }

// Bin builds a binary operation. Comparisons and logical operators are
// boolean, the others take the left operand's type.
func (b *Builder) Bin(op ir.BinaryOp, l, r ir.Node) *ir.Binary {
	t := l.Type()
	if op.IsComparison() || op.IsLogical() || op == ir.OpIn {
		t = ir.Scalar(ir.KindBoolean)
	}
	return &ir.Binary{Meta: b.meta(t), Op: op, Left: l, Right: r}
}

// Not negates a boolean.
func (b *Builder) Not(n ir.Node) *ir.Unary {
	return &ir.Unary{Meta: b.meta(ir.Scalar(ir.KindBoolean)), Op: ir.OpNot, Child: n}
}

// Field reads a column of a record-valued node.
func (b *Builder) Field(base ir.Node, name string) *ir.FieldAccess {
	t, _ := base.Type().Field(name)
	return &ir.FieldAccess{Meta: b.meta(t), Base: base, Name: name}
}

// Call builds an unscoped call with an explicit result type.
func (b *Builder) Call(f ir.FuncID, t ir.Type, args ...ir.Node) *ir.Call {
	return &ir.Call{Meta: b.meta(t), Func: f, Args: args}
}

// Row is the current row of a scoped call under construction.
type Row struct {
	b     *Builder
	Scope ir.ScopeID
	t     ir.Type
}

// Col reads a column of the current row.
func (r Row) Col(name string) *ir.ScopeAccess {
	t, _ := r.t.Field(name)
	return &ir.ScopeAccess{Meta: r.b.meta(t), Scope: r.Scope, Name: name}
}

// Has reports whether the current row has the named column.
func (r Row) Has(name string) bool {
	_, ok := r.t.Field(name)
	return ok
}

// Scoped builds a call whose arguments after the source are evaluated per
// row. Each of preds is wrapped in a Lazy node.
func (b *Builder) Scoped(f ir.FuncID, t ir.Type, src ir.Node, preds ...func(Row) ir.Node) *ir.Call {
	row := Row{b: b, Scope: b.clock.NextScope(), t: src.Type()}
	args := []ir.Node{src}
	for _, p := range preds {
		body := p(row)
		args = append(args, &ir.Lazy{Meta: ir.Meta{T: body.Type(), At: body.Span()}, Child: body})
	}
	return &ir.Call{Meta: b.meta(t), Func: f, Scope: row.Scope, Args: args}
}

// Filter builds Filter(src, preds...).
func (b *Builder) Filter(src ir.Node, preds ...func(Row) ir.Node) *ir.Call {
	return b.Scoped(ir.FuncFilter, src.Type(), src, preds...)
}

// LookUp builds LookUp(src, pred).
func (b *Builder) LookUp(src ir.Node, pred func(Row) ir.Node) *ir.Call {
	return b.Scoped(ir.FuncLookUp, src.Type().Row(), src, pred)
}

// First builds First(src).
func (b *Builder) First(src ir.Node) *ir.Call {
	return b.Call(ir.FuncFirst, src.Type().Row(), src)
}

// FirstN builds FirstN(src, n).
func (b *Builder) FirstN(src, n ir.Node) *ir.Call {
	return b.Call(ir.FuncFirstN, src.Type(), src, n)
}

// CountRows builds CountRows(src).
func (b *Builder) CountRows(src ir.Node) *ir.Call {
	return b.Call(ir.FuncCountRows, ir.Scalar(ir.KindNumber), src)
}

// SortByColumns builds SortByColumns(src, "col"[, "Descending"]).
func (b *Builder) SortByColumns(src ir.Node, col string, descending bool) *ir.Call {
	args := []ir.Node{src, b.Str(col)}
	if descending {
		args = append(args, b.Str("Descending"))
	}
	return b.Call(ir.FuncSortByColumns, src.Type(), args...)
}

// SortByKeys builds SortByColumns(src, "c1", "o1", "c2", ...) from column
// and order arguments given in call order.
func (b *Builder) SortByKeys(src ir.Node, args ...string) *ir.Call {
	nodes := []ir.Node{src}
	for _, a := range args {
		nodes = append(nodes, b.Str(a))
	}
	return b.Call(ir.FuncSortByColumns, src.Type(), nodes...)
}

// ShowColumns builds ShowColumns(src, "c1", "c2", ...).
func (b *Builder) ShowColumns(src ir.Node, cols ...string) *ir.Call {
	var fields []ir.Field
	args := []ir.Node{src}
	for _, c := range cols {
		if t, ok := src.Type().Field(c); ok {
			fields = append(fields, ir.Field{Name: c, Type: t})
		}
		args = append(args, b.Str(c))
	}
	return b.Call(ir.FuncShowColumns, ir.TableOf(fields...), args...)
}

// Notify builds a side-effecting Notify(msg) returning a boolean.
func (b *Builder) Notify(msg string) *ir.Call {
	return b.Call(ir.FuncNotify, ir.Scalar(ir.KindBoolean), b.Str(msg))
}
