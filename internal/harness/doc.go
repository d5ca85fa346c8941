// Package harness provides conformance testing for delegation.
//
// A scenario declares remote tables with their rows, a bound formula over
// them, and what rewriting the formula must produce. The harness loads the
// rows into an in-memory SQLite store, rewrites the formula, and evaluates
// both the original and the rewritten tree. Plan calls run through
// querysql against the store; everything else is evaluated locally. The two
// results must agree: delegation may change where work happens, never what
// the formula returns.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: first_filter
//	description: "What this scenario validates"
//	tables:
//	  - name: Accounts
//	    primary_key: accountid
//	    capabilities: [filter, sort, top]
//	    columns:
//	      - {name: accountid, type: guid}
//	      - {name: revenue, type: number}
//	    rows:
//	      - {accountid: "…", revenue: 1200}
//	variables:
//	  - {name: Names, type: string, values: [Ada, Grace]}
//	options:
//	  max_rows: 100
//	formula:
//	  call: First
//	  args:
//	    - call: Filter
//	      args: [{table: Accounts}, {gt: [{col: revenue}, 1000]}]
//	expect:
//	  plan: __retrieveSingle(Accounts, revenue > 1000, _, _, _, 1, _)
//	  diagnostics: []
//	  result: '{accountid: GUID("…"), revenue: 1200}'
//	  queries:
//	    - SELECT ...
//
// See DecodeFormula for the formula forms.
//
// # Determinism
//
// Every SQL query orders by the requested keys and then the primary key,
// and local table scans are in primary key order, so results and golden
// snapshots are reproducible.
//
// # Usage
//
//	scenarios, err := harness.LoadDir("testdata/scenarios")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := harness.RunAll(ctx, scenarios)
package harness
