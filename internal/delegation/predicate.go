package delegation

import (
	"github.com/roach88/delegate/internal/diag"
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
)

// deniedFieldKinds are storage types never compared at the source. The
// remote comparator loses precision on money values.
var deniedFieldKinds = map[ir.Kind]bool{
	ir.KindCurrency: true,
}

// translator turns row-scoped boolean expressions into remote predicates.
type translator struct {
	pass  *pass
	scope ir.ScopeID
	cand  candidate

	// reported is set once a specific diagnostic explained a refusal, even
	// when the bag dropped it as a duplicate.
	reported bool
}

// translate returns the remote predicate for n, or false when n must be
// evaluated locally.
func (t *translator) translate(n ir.Node) (queryir.Predicate, bool) {
	switch v := ir.Unwrap(n).(type) {
	case *ir.Binary:
		switch {
		case v.Op == ir.OpAnd || v.Op == ir.OpOr:
			return t.combine(v.Op == ir.OpAnd, []ir.Node{v.Left, v.Right})
		case v.Op.IsComparison():
			return t.comparison(v)
		case v.Op == ir.OpIn:
			return t.membership(v)
		}
	case *ir.Call:
		switch v.Func {
		case ir.FuncAnd, ir.FuncOr:
			return t.combine(v.Func == ir.FuncAnd, v.Args)
		case ir.FuncStartsWith, ir.FuncEndsWith:
			return t.stringMatch(v)
		}
	}
	return nil, false
}

// combine translates every argument. The combinator delegates only if all
// of them do: pushing down part of an And/Or would drop terms.
func (t *translator) combine(and bool, args []ir.Node) (queryir.Predicate, bool) {
	frags := make([]queryir.Predicate, 0, len(args))
	ok := true
	for _, a := range args {
		f, delegated := t.translate(a)
		if !delegated {
			ok = false
			continue
		}
		frags = append(frags, f)
	}
	if !ok || len(frags) == 0 {
		return nil, false
	}
	if len(frags) == 1 {
		return frags[0], true
	}
	if and {
		var out queryir.Predicate
		for _, f := range frags {
			out = queryir.Conjoin(out, f)
		}
		return out, true
	}
	var flat []queryir.Predicate
	for _, f := range frags {
		if or, ok := f.(*queryir.Or); ok {
			flat = append(flat, or.Predicates...)
			continue
		}
		flat = append(flat, f)
	}
	return &queryir.Or{Predicates: flat}, true
}

// field returns n as a readable column of the candidate in the caller's row
// scope.
func (t *translator) field(n ir.Node) (*ir.ScopeAccess, bool) {
	sa, ok := ir.Unwrap(n).(*ir.ScopeAccess)
	if !ok || t.scope == 0 || sa.Scope != t.scope {
		return nil, false
	}
	return sa, t.cand.hasColumn(sa.Name)
}

// selfComparison reports whether a and b read the same column of the
// caller's row.
func (t *translator) selfComparison(a, b ir.Node) (string, bool) {
	if t.scope == 0 {
		return "", false
	}
	return sameColumn(t.scope, a, b)
}

func (t *translator) comparison(v *ir.Binary) (queryir.Predicate, bool) {
	if name, ok := t.selfComparison(v.Left, v.Right); ok {
		t.warn(diag.RedundantPredicate, v.Span(), name)
		return nil, false
	}
	left, leftIsField := t.field(v.Left)
	right, rightIsField := t.field(v.Right)
	if !leftIsField && !rightIsField {
		return nil, false
	}

	op, _ := queryir.CompareOpFor(v.Op)
	field, value := left, v.Right
	if !leftIsField {
		field, value = right, v.Left
		op = queryir.Commute(op)
	}

	val, ok := t.value(field, value)
	if !ok {
		return nil, false
	}
	return &queryir.Compare{Field: field.Name, Op: op, Value: val}, true
}

// membership handles "field in set". The reverse form tests containment in
// the field's text and has no remote counterpart.
func (t *translator) membership(v *ir.Binary) (queryir.Predicate, bool) {
	field, ok := t.field(v.Left)
	if !ok || !v.Right.Type().IsTable() {
		return nil, false
	}
	val, ok := t.value(field, v.Right)
	if !ok {
		return nil, false
	}
	return &queryir.In{Field: field.Name, Set: val}, true
}

func (t *translator) stringMatch(call *ir.Call) (queryir.Predicate, bool) {
	if len(call.Args) != 2 {
		return nil, false
	}
	if name, ok := t.selfComparison(call.Args[0], call.Args[1]); ok {
		t.warn(diag.RedundantPredicate, call.Span(), name)
		return nil, false
	}
	field, ok := t.field(call.Args[0])
	if !ok {
		return nil, false
	}
	val, ok := t.value(field, call.Args[1])
	if !ok {
		return nil, false
	}
	if call.Func == ir.FuncStartsWith {
		return &queryir.StartsWith{Field: field.Name, Prefix: val}, true
	}
	return &queryir.EndsWith{Field: field.Name, Suffix: val}, true
}

// value checks that the value side of a predicate on field can be computed
// once per query, and rewrites it so nested table operations delegate too.
func (t *translator) value(field *ir.ScopeAccess, value ir.Node) (ir.Node, bool) {
	if ir.ReferencesScope(value, t.scope) {
		t.warn(diag.CurrentRowReferenced, value.Span(), field.Name)
		return nil, false
	}
	if c, ok := ir.FindBehaviorCall(value); ok {
		t.warn(diag.BehaviorFunctionReferenced, c.Span(), c.Func.String())
		return nil, false
	}
	if kind, _ := t.cand.meta.FieldType(field.Name); deniedFieldKinds[kind] {
		return nil, false
	}
	return t.pass.Materialize(t.pass.Rewrite(value)), true
}

func (t *translator) warn(key diag.Key, span ir.Span, args ...string) {
	t.reported = true
	t.pass.bag.Warn(key, span, args...)
}

// primaryKeyValue matches "key = value" (either operand order) where key is
// the candidate's primary key and value is computable once per query.
func (p *pass) primaryKeyValue(call *ir.Call, cand candidate, pred ir.Node) (ir.Node, bool) {
	eq, ok := pred.(*ir.Binary)
	if !ok || eq.Op != ir.OpEq || cand.meta.PrimaryKey == "" {
		return nil, false
	}
	isKey := func(n ir.Node) bool {
		sa, ok := ir.Unwrap(n).(*ir.ScopeAccess)
		return ok && call.Scope != 0 && sa.Scope == call.Scope && sa.Name == cand.meta.PrimaryKey
	}
	var value ir.Node
	switch {
	case isKey(eq.Left) && !isKey(eq.Right):
		value = eq.Right
	case isKey(eq.Right) && !isKey(eq.Left):
		value = eq.Left
	default:
		return nil, false
	}
	if ir.ReferencesScope(value, call.Scope) || ir.CallsBehavior(value) {
		return nil, false
	}
	return value, true
}
