// Package schema loads remote table metadata written in CUE.
//
// A schema directory holds one CUE package whose top-level "table" struct
// maps table names to their definitions:
//
//	table: Accounts: {
//		primary_key:  "accountid"
//		capabilities: ["filter", "sort", "top"]
//		columns: {
//			accountid: "guid"
//			name:      "string"
//			revenue:   "number"
//		}
//	}
//
// Columns keep their declaration order. Compiled tables are checked by
// Validate, whose codes are in the E1xx range.
package schema
