package queryir

import (
	"fmt"

	"github.com/roach88/delegate/internal/ir"
)

// Shape is the result shape of a plan.
type Shape uint8

const (
	// ShapeSingle returns at most one record.
	ShapeSingle Shape = iota
	// ShapeMany returns a table.
	ShapeMany
	// ShapeByKey returns the record with the given primary key.
	ShapeByKey
	// ShapeAggregate returns a scalar aggregation over the matching rows.
	ShapeAggregate
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeMany:
		return "many"
	case ShapeByKey:
		return "by_key"
	case ShapeAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Func returns the well-known plan function for the shape.
func (s Shape) Func() ir.FuncID {
	switch s {
	case ShapeSingle:
		return ir.FuncRetrieveSingle
	case ShapeMany:
		return ir.FuncRetrieveMany
	case ShapeByKey:
		return ir.FuncRetrieveByKey
	case ShapeAggregate:
		return ir.FuncRetrieveAggregate
	default:
		return ir.FuncUnknown
	}
}

func shapeOf(f ir.FuncID) (Shape, bool) {
	switch f {
	case ir.FuncRetrieveSingle:
		return ShapeSingle, true
	case ir.FuncRetrieveMany:
		return ShapeMany, true
	case ir.FuncRetrieveByKey:
		return ShapeByKey, true
	case ir.FuncRetrieveAggregate:
		return ShapeAggregate, true
	default:
		return 0, false
	}
}

// Retrieve is the decoded form of a plan call.
//
// Argument layout of the plan call:
//
//	single, many: [table, filter, orderBy, join, groupBy, rowLimit, columns]
//	aggregate:    [table, filter, orderBy, join, groupBy, rowLimit, columns, aggregate]
//	by key:       [table, key, columns]
//
// Fragment slots are ir.Embedded leaves whose nil Value means "absent".
// rowLimit is the explicit limit node, or an ir.Embedded RowCeiling when the
// formula did not ask for one. Join and group-by slots are reserved and
// always empty in plans built by this module.
type Retrieve struct {
	Shape Shape

	// Table is the source table reference.
	Table *ir.Ref

	Filter  Predicate
	OrderBy OrderBy

	// Top is the explicit row limit, nil when none was requested.
	Top ir.Node

	// Ceiling is the configured row ceiling used when Top is nil.
	Ceiling int

	Columns ColumnMap

	// Key is the primary key value of a by-key plan.
	Key ir.Node

	// Aggregate is the aggregation of an aggregate plan.
	Aggregate Aggregate

	// Type and Span are copied onto the plan call.
	Type ir.Type
	Span ir.Span
}

// TableName returns the name of the source table.
func (r Retrieve) TableName() string {
	if r.Table == nil {
		return ""
	}
	return r.Table.Symbol.Name
}

// Requires returns the capabilities the plan needs from its table.
func (r Retrieve) Requires() Capability {
	var c Capability
	if r.Filter != nil || r.Shape == ShapeByKey {
		c |= CapFilter
	}
	if len(r.OrderBy) > 0 {
		c |= CapSort
	}
	if r.Top != nil {
		c |= CapTop
	}
	if len(r.Columns) > 0 {
		c |= CapColumnProjection
	}
	if r.Shape == ShapeAggregate {
		if r.Aggregate == AggregateCount {
			c |= CapCount
		} else {
			c |= CapTopLevelAggregation
		}
	}
	return c
}

// Encode builds the plan call for r.
func Encode(r Retrieve) *ir.Call {
	call := &ir.Call{
		Meta: ir.Meta{T: r.Type, At: r.Span},
		Func: r.Shape.Func(),
	}
	if r.Shape == ShapeByKey {
		call.Args = []ir.Node{r.Table, r.Key, embed(columnsFragment(r.Columns))}
		return call
	}
	call.Args = []ir.Node{
		r.Table,
		embedPredicate(r.Filter),
		embed(orderFragment(r.OrderBy)),
		embed(nil),
		embed(nil),
		r.rowLimit(),
		embed(columnsFragment(r.Columns)),
	}
	if r.Shape == ShapeAggregate {
		call.Args = append(call.Args, embed(r.Aggregate))
	}
	return call
}

func (r Retrieve) rowLimit() ir.Node {
	if r.Top != nil {
		return r.Top
	}
	if r.Shape == ShapeAggregate && r.Ceiling == 0 {
		return embed(nil)
	}
	return embed(RowCeiling(r.Ceiling))
}

func embed(f ir.Fragment) *ir.Embedded {
	return &ir.Embedded{Value: f}
}

func embedPredicate(p Predicate) *ir.Embedded {
	if p == nil {
		return embed(nil)
	}
	return &ir.Embedded{Meta: ir.Meta{T: ir.Scalar(ir.KindBoolean)}, Value: p}
}

// orderFragment and columnsFragment keep an empty slice from becoming a
// non-nil fragment.
func orderFragment(o OrderBy) ir.Fragment {
	if len(o) == 0 {
		return nil
	}
	return o
}

func columnsFragment(c ColumnMap) ir.Fragment {
	if len(c) == 0 {
		return nil
	}
	return c
}

// IsPlan reports whether n is a call to a plan function.
func IsPlan(n ir.Node) bool {
	c, ok := n.(*ir.Call)
	return ok && c.Func.Info().Plan
}

// DecodeError reports a malformed plan call.
type DecodeError struct {
	Func    string
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Func, e.Message)
}

// Decode parses a plan call back into a Retrieve.
func Decode(call *ir.Call) (Retrieve, error) {
	fail := func(format string, args ...any) (Retrieve, error) {
		return Retrieve{}, &DecodeError{Func: call.Func.String(), Message: fmt.Sprintf(format, args...)}
	}
	shape, ok := shapeOf(call.Func)
	if !ok {
		return fail("not a plan function")
	}
	if !call.Func.AcceptsArgs(len(call.Args)) {
		return fail("expected %d arguments, got %d", call.Func.Info().MinArgs, len(call.Args))
	}
	table, ok := call.Args[0].(*ir.Ref)
	if !ok {
		return fail("argument 0 must be a table reference, got %T", call.Args[0])
	}
	r := Retrieve{Shape: shape, Table: table, Type: call.Type(), Span: call.Span()}

	if shape == ShapeByKey {
		r.Key = call.Args[1]
		cols, err := decodeFragment[ColumnMap](call.Args[2])
		if err != nil {
			return fail("columns: %v", err)
		}
		r.Columns = cols
		return r, nil
	}

	filter, err := decodeFragment[Predicate](call.Args[1])
	if err != nil {
		return fail("filter: %v", err)
	}
	order, err := decodeFragment[OrderBy](call.Args[2])
	if err != nil {
		return fail("order by: %v", err)
	}
	for i, name := range []string{"join", "group by"} {
		if e, ok := call.Args[3+i].(*ir.Embedded); !ok || e.Value != nil {
			return fail("%s clauses are not supported", name)
		}
	}
	switch limit := call.Args[5].(type) {
	case *ir.Embedded:
		ceiling, err := decodeFragment[RowCeiling](limit)
		if err != nil {
			return fail("row limit: %v", err)
		}
		r.Ceiling = int(ceiling)
	default:
		r.Top = limit
	}
	cols, err := decodeFragment[ColumnMap](call.Args[6])
	if err != nil {
		return fail("columns: %v", err)
	}
	r.Filter, r.OrderBy, r.Columns = filter, order, cols

	if shape == ShapeAggregate {
		agg, err := decodeFragment[Aggregate](call.Args[7])
		if err != nil {
			return fail("aggregate: %v", err)
		}
		if agg == "" {
			return fail("aggregate kind is required")
		}
		r.Aggregate = agg
	}
	return r, nil
}

// decodeFragment reads an embedded fragment of type T. An absent fragment
// decodes to the zero T.
func decodeFragment[T ir.Fragment](n ir.Node) (T, error) {
	var zero T
	e, ok := n.(*ir.Embedded)
	if !ok {
		return zero, fmt.Errorf("expected embedded fragment, got %T", n)
	}
	if e.Value == nil {
		return zero, nil
	}
	v, ok := e.Value.(T)
	if !ok {
		return zero, fmt.Errorf("expected %T fragment, got %T", zero, e.Value)
	}
	return v, nil
}
