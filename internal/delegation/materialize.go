package delegation

import (
	"strings"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
)

// materialize finalizes a candidate. Without query state the original node
// is returned unchanged; otherwise the plan shape follows the declared
// result type of the original node.
func (p *pass) materialize(c candidate) ir.Node {
	if !c.hasState() {
		return c.original
	}

	t := c.original.Type()
	r := queryir.Retrieve{
		Table:   c.table,
		Filter:  c.filter,
		OrderBy: c.orderBy,
		Top:     c.top,
		Columns: c.columns,
		Type:    t,
		Span:    c.original.Span(),
	}
	switch {
	case t.IsRecord():
		r.Shape = queryir.ShapeSingle
		if r.Top == nil {
			r.Ceiling = 1
		}
	case t.IsTable():
		r.Shape = queryir.ShapeMany
		r.Ceiling = p.maxRows
	case t.IsNumeric() && c.count:
		r.Shape = queryir.ShapeAggregate
		r.Aggregate = queryir.AggregateCount
	default:
		violate(ErrCodeResultShape, r.Span, nil, "cannot delegate %s with result type %s", ir.Format(c.original), t)
	}
	return p.emit(r, c)
}

// materializeByKey builds the retrieve-by-key plan for LookUp(table, key = value).
func (p *pass) materializeByKey(call *ir.Call, c candidate, key ir.Node) ir.Node {
	if !call.Type().IsRecord() {
		violate(ErrCodeResultShape, call.Span(), nil, "LookUp with result type %s", call.Type())
	}
	r := queryir.Retrieve{
		Shape: queryir.ShapeByKey,
		Table: c.table,
		Key:   p.Materialize(p.Rewrite(key)),
		Type:  call.Type(),
		Span:  call.Span(),
	}
	return p.emit(r, c)
}

// emit checks r against the table and encodes it. A failure here means the
// planner built a plan it should have refused.
func (p *pass) emit(r queryir.Retrieve, c candidate) ir.Node {
	if err := queryir.CheckCapabilities(r, c.meta.Capabilities); err != nil {
		violate(ErrCodeCapability, r.Span, err, "%v", err)
	}
	if v := queryir.Validate(r); !v.IsWellFormed {
		violate(ErrCodeMalformedPlan, r.Span, nil, "%s", strings.Join(v.Problems, "; "))
	}
	plan := queryir.Encode(r)
	p.logger.Debug("delegated", "table", c.tableName(), "shape", r.Shape.String(), "requires", r.Requires().String())
	return plan
}
