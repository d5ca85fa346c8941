// Package queryir provides the remote query representation produced by the
// delegation pass and consumed by executors.
//
// ARCHITECTURE:
//
// queryir is the contract between the delegation pass and whatever runs the
// query at the data source:
//
//	[bound tree] → [delegation] → [plan call + queryir fragments] → [executor]
//	                                                              → [querysql] (reference)
//
// A delegated operation is spliced into the expression tree as a call to one
// of the well-known plan functions (ir.FuncRetrieveSingle, ...). Its ordered
// arguments carry the table reference, the value nodes evaluated by the
// executor, and ir.Embedded leaves holding the fragments defined here.
// Encode and Decode convert between that call and the Retrieve struct.
//
// FRAGMENTS:
//
//   - Predicate (sealed): Compare, StartsWith, EndsWith, In, And, Or
//   - OrderBy: ordered sort keys
//   - ColumnMap: projected columns
//   - Aggregate: scalar aggregation kind (count)
//   - RowCeiling: the configured row ceiling when no explicit limit was asked
//
// Predicates always have the form "field OP value": the field is a column of
// the source table and the value is an ir.Node evaluated once per query,
// never per row. Commute normalizes "value OP field" comparisons.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package can implement it, which enables exhaustive type
// switches in executors:
//
//	switch p := pred.(type) {
//	case *Compare:
//	    // field OP value
//	case *And:
//	    // conjunction
//	default:
//	    // Impossible - compiler knows all Predicate types
//	}
//
// CAPABILITIES:
//
// Every table declares the query features it supports as a Capability
// bitmask. A Retrieve reports the features it needs through Requires, and
// CheckCapabilities rejects a plan that asks for more than the table offers.
// Such a plan is a bug in the planner, not a user error.
package queryir
