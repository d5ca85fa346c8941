package ir

// Equal reports whether a and b are structurally equal: same variants, same
// operators, values and types. Spans are ignored.
func Equal(a, b Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if !a.Type().Equal(b.Type()) {
		return false
	}
	switch x := a.(type) {
	case *Literal:
		y, ok := b.(*Literal)
		return ok && valueEqual(x.Value, y.Value)
	case *Record:
		y, ok := b.(*Record)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name || !Equal(x.Fields[i].Value, y.Fields[i].Value) {
				return false
			}
		}
		return true
	case *Call:
		y, ok := b.(*Call)
		return ok && x.Func == y.Func && x.Scope == y.Scope && equalNodes(x.Args, y.Args)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && Equal(x.Child, y.Child)
	case *FieldAccess:
		y, ok := b.(*FieldAccess)
		return ok && x.Name == y.Name && Equal(x.Base, y.Base)
	case *ScopeAccess:
		y, ok := b.(*ScopeAccess)
		return ok && x.Scope == y.Scope && x.Name == y.Name
	case *Ref:
		y, ok := b.(*Ref)
		return ok && x.Symbol == y.Symbol
	case *Lazy:
		y, ok := b.(*Lazy)
		return ok && Equal(x.Child, y.Child)
	case *Chain:
		y, ok := b.(*Chain)
		return ok && equalNodes(x.Nodes, y.Nodes)
	case *AggregateCoercion:
		y, ok := b.(*AggregateCoercion)
		if !ok || len(x.Coercions) != len(y.Coercions) || !Equal(x.Child, y.Child) {
			return false
		}
		for i := range x.Coercions {
			if x.Coercions[i] != y.Coercions[i] {
				return false
			}
		}
		return true
	case *Error:
		y, ok := b.(*Error)
		return ok && x.Message == y.Message
	case *Embedded:
		y, ok := b.(*Embedded)
		return ok && EqualFragment(x.Value, y.Value)
	default:
		return false
	}
}

// EqualFragment compares two embedded fragments, preferring the fragment's
// own structural equality when it provides one.
func EqualFragment(a, b Fragment) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(interface{ EqualFragment(Fragment) bool }); ok {
		return eq.EqualFragment(b)
	}
	return a.String() == b.String()
}

func equalNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// valueEqual compares literal values. Every Value implementation is a
// comparable type, so interface equality is exact.
func valueEqual(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}
