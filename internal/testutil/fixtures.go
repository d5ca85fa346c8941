package testutil

import (
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// Accounts is the reference table: primary key accountid, capabilities
// filter, top and sort, and a currency column that is never compared
// remotely.
func Accounts() *metadata.Table {
	return &metadata.Table{
		Name:         "Accounts",
		PrimaryKey:   "accountid",
		Capabilities: queryir.CapFilter | queryir.CapTop | queryir.CapSort,
		Columns: []metadata.Column{
			{Name: "accountid", Type: ir.KindGuid},
			{Name: "name", Type: ir.KindString},
			{Name: "revenue", Type: ir.KindNumber},
			{Name: "creditlimit", Type: ir.KindCurrency},
			{Name: "ownerid", Type: ir.KindGuid},
		},
	}
}

// Contacts supports every capability.
func Contacts() *metadata.Table {
	return &metadata.Table{
		Name:         "Contacts",
		PrimaryKey:   "contactid",
		Capabilities: queryir.CapAll,
		Columns: []metadata.Column{
			{Name: "contactid", Type: ir.KindGuid},
			{Name: "fullname", Type: ir.KindString},
			{Name: "accountid", Type: ir.KindGuid},
			{Name: "age", Type: ir.KindNumber},
		},
	}
}

// Provider certifies Accounts and Contacts.
func Provider() *metadata.Static {
	return metadata.NewStatic(Accounts(), Contacts())
}
