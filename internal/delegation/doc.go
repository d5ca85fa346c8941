// Package delegation rewrites table operations in a bound expression tree
// so that they run at the remote data source.
//
// ARCHITECTURE:
//
//	[bound tree] → redundant-predicate check → planner → materializer → [tree + diagnostics]
//
// The planner walks the tree with the ir.Rewriter framework. A reference to
// a certified remote table starts a candidate; table functions wrapped
// around it (Filter, LookUp, First, FirstN, CountRows, SortByColumns,
// ShowColumns) extend the candidate one step at a time. Whenever a parent
// cannot extend it, the candidate is materialized: it becomes a plan call
// (see queryir.Encode) when it carries any query state, and the untouched
// original node otherwise.
//
// FALLBACK:
//
// Delegation is an optimization. Anything the planner cannot push down is
// left exactly as the binder produced it, so the formula keeps its meaning
// and is evaluated locally. Each such case reports a non-fatal diagnostic
// (see package diag) unless the use of the table is a normal non-delegating
// one, such as IsBlank(Accounts).
//
// CONTRACT VIOLATIONS:
//
// Malformed input that a correct binder never produces (wrong arity of a
// table function, an unknown result shape, a plan asking for capabilities
// the table lacks) aborts the pass with a *ContractViolation error.
//
// CONCURRENCY:
//
// A Planner is immutable and may be shared. Every Rewrite call owns its
// diagnostics; the only shared collaborator is the metadata.Provider, which
// must be safe for concurrent reads.
package delegation
