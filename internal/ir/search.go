package ir

// Search walks n depth-first in pre-order and returns the first result for
// which match reports true. It is the point-query counterpart of Default.
func Search[T any](n Node, match func(Node) (T, bool)) (T, bool) {
	var zero T
	if n == nil {
		return zero, false
	}
	if v, ok := match(n); ok {
		return v, true
	}
	for _, child := range Children(n) {
		if v, ok := Search(child, match); ok {
			return v, true
		}
	}
	return zero, false
}

// Contains reports whether any node of n satisfies pred.
func Contains(n Node, pred func(Node) bool) bool {
	_, ok := Search(n, func(m Node) (struct{}, bool) {
		return struct{}{}, pred(m)
	})
	return ok
}

// ReferencesScope reports whether n reads the current row of scope.
func ReferencesScope(n Node, scope ScopeID) bool {
	if scope == 0 {
		return false
	}
	return Contains(n, func(m Node) bool {
		sa, ok := m.(*ScopeAccess)
		return ok && sa.Scope == scope
	})
}

// FindBehaviorCall returns the first side-effecting call inside n.
func FindBehaviorCall(n Node) (*Call, bool) {
	return Search(n, func(m Node) (*Call, bool) {
		c, ok := m.(*Call)
		return c, ok && c.Func.Info().Behavior
	})
}

// CallsBehavior reports whether n calls a side-effecting function.
func CallsBehavior(n Node) bool {
	_, ok := FindBehaviorCall(n)
	return ok
}
