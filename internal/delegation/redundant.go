package delegation

import (
	"github.com/roach88/delegate/internal/diag"
	"github.com/roach88/delegate/internal/ir"
)

// checkRedundant reports every Filter or LookUp predicate that compares a
// column of the row being filtered with itself, e.g. LookUp(T, id = id).
// It runs before planning and whether or not delegation is enabled; the
// translator reports the same finding with the same span, which the bag
// de-duplicates.
func (p *pass) checkRedundant(root ir.Node) {
	ir.Contains(root, func(n ir.Node) bool {
		call, ok := n.(*ir.Call)
		if !ok || call.Scope == 0 || len(call.Args) < 2 || (call.Func != ir.FuncFilter && call.Func != ir.FuncLookUp) {
			return false
		}
		for _, pred := range call.Args[1:] {
			p.checkSelfComparison(call.Scope, pred)
		}
		return false
	})
}

func (p *pass) checkSelfComparison(scope ir.ScopeID, n ir.Node) {
	switch v := ir.Unwrap(n).(type) {
	case *ir.Binary:
		if v.Op.IsLogical() {
			p.checkSelfComparison(scope, v.Left)
			p.checkSelfComparison(scope, v.Right)
			return
		}
		if !v.Op.IsComparison() {
			return
		}
		if name, ok := sameColumn(scope, v.Left, v.Right); ok {
			p.bag.Warn(diag.RedundantPredicate, v.Span(), name)
		}
	case *ir.Call:
		switch v.Func {
		case ir.FuncAnd, ir.FuncOr:
			for _, a := range v.Args {
				p.checkSelfComparison(scope, a)
			}
		case ir.FuncStartsWith, ir.FuncEndsWith:
			if len(v.Args) != 2 {
				return
			}
			if name, ok := sameColumn(scope, v.Args[0], v.Args[1]); ok {
				p.bag.Warn(diag.RedundantPredicate, v.Span(), name)
			}
		}
	}
}

// sameColumn reports whether a and b both read the same column of scope.
func sameColumn(scope ir.ScopeID, a, b ir.Node) (string, bool) {
	l, lok := ir.Unwrap(a).(*ir.ScopeAccess)
	r, rok := ir.Unwrap(b).(*ir.ScopeAccess)
	if lok && rok && l.Scope == scope && r.Scope == scope && l.Name == r.Name {
		return l.Name, true
	}
	return "", false
}
