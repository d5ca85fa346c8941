// Package ir provides the typed expression tree consumed and produced by the
// delegation compiler.
//
// This package contains the node algebra and the generic traversal helpers
// only. All other internal packages import ir; ir imports nothing internal.
// This keeps the tree the foundational layer with no circular dependencies.
//
// SEALED NODES:
//
// Node and Value are sealed interfaces using the marker method pattern. Only
// types in this package implement them, so every traversal can switch
// exhaustively over the variants:
//
//	switch n := node.(type) {
//	case *Literal:
//	case *Call:
//	    ...
//	default:
//	    // unreachable - the variant set is closed
//	}
//
// IDENTITY:
//
// Nodes are immutable once built. Rewrites return the very same pointer for an
// untouched subtree, so callers detect "nothing changed" with ==. MapChildren
// and Default preserve this; any new traversal must as well.
//
// Key design constraints:
//   - NO float values anywhere - numbers are Int or exact Decimal text
//   - Every node carries a result Type and a source Span
//   - Function identities come from an immutable registry built at init
package ir
