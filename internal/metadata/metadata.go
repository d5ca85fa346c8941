// Package metadata describes the remote tables a formula can delegate to:
// which symbols are genuine remote tables, their primary keys, column
// storage types and supported query capabilities.
package metadata

import (
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
)

// Provider answers table questions for the delegation pass. Implementations
// must be safe for concurrent use by independent compilations.
type Provider interface {
	// Table returns the remote table sym denotes. ok is false when sym is
	// not a genuine remote table, e.g. a variable holding a table value.
	Table(sym ir.Symbol) (*Table, bool)
}

// Column is one stored column of a remote table.
type Column struct {
	Name string  `json:"name" yaml:"name"`
	Type ir.Kind `json:"type" yaml:"type"`
}

// Table is the immutable description of a remote table.
type Table struct {
	Name         string             `json:"name"`
	PrimaryKey   string             `json:"primary_key"`
	Capabilities queryir.Capability `json:"capabilities"`
	Columns      []Column           `json:"columns"`
}

// FieldType returns the storage type of the named column.
func (t *Table) FieldType(name string) (ir.Kind, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return ir.KindUnknown, false
}

// Type returns the table type of the source as the binder sees it.
func (t *Table) Type() ir.Type {
	fields := make([]ir.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = ir.Field{Name: c.Name, Type: ir.Scalar(c.Type)}
	}
	return ir.TableOf(fields...)
}

// Static is a Provider over a fixed set of tables. It is read-only after
// construction.
type Static struct {
	tables map[string]*Table
}

// NewStatic returns a provider for the given tables. Later tables replace
// earlier ones with the same name.
func NewStatic(tables ...*Table) *Static {
	m := make(map[string]*Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return &Static{tables: m}
}

// Table implements Provider. Only SymbolTable symbols are certified.
func (s *Static) Table(sym ir.Symbol) (*Table, bool) {
	if sym.Kind != ir.SymbolTable {
		return nil, false
	}
	t, ok := s.tables[sym.Name]
	return t, ok
}

// Lookup returns the table by name, for use as a cache Loader.
func (s *Static) Lookup(name string) (*Table, error) {
	return s.tables[name], nil
}

// Tables returns every table, unordered.
func (s *Static) Tables() []*Table {
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	return out
}
