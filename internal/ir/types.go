package ir

import (
	"fmt"
	"strings"
)

// Kind is the shape of a node's result type as assigned by the binder.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBlank
	KindBoolean
	KindNumber
	KindDecimal
	KindCurrency
	KindString
	KindGuid
	KindDateTime
	KindRecord
	KindTable
	KindError
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindBlank:    "blank",
	KindBoolean:  "boolean",
	KindNumber:   "number",
	KindDecimal:  "decimal",
	KindCurrency: "currency",
	KindString:   "string",
	KindGuid:     "guid",
	KindDateTime: "datetime",
	KindRecord:   "record",
	KindTable:    "table",
	KindError:    "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a kind name (as written in schema files and scenarios)
// back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown type kind %q", s)
}

// Field is a named column of a record or table type.
type Field struct {
	Name string
	Type Type
}

// Type is the result type of a node. Fields is only meaningful for record and
// table kinds and keeps declaration order.
type Type struct {
	Kind   Kind
	Fields []Field
}

// Scalar returns a field-less type of the given kind.
func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// RecordOf returns a record type with the given columns.
func RecordOf(fields ...Field) Type {
	return Type{Kind: KindRecord, Fields: fields}
}

// TableOf returns a table type with the given columns.
func TableOf(fields ...Field) Type {
	return Type{Kind: KindTable, Fields: fields}
}

// IsTable reports whether t is table-shaped.
func (t Type) IsTable() bool { return t.Kind == KindTable }

// IsRecord reports whether t is record-shaped.
func (t Type) IsRecord() bool { return t.Kind == KindRecord }

// IsNumeric reports whether t is a number or decimal.
func (t Type) IsNumeric() bool {
	return t.Kind == KindNumber || t.Kind == KindDecimal
}

// Field returns the type of the named column.
func (t Type) Field(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}

// Row returns the record type of one row of a table type.
func (t Type) Row() Type {
	return Type{Kind: KindRecord, Fields: t.Fields}
}

// Equal reports whether two types have the same kind and columns.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind || len(t.Fields) != len(u.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != u.Fields[i].Name || !t.Fields[i].Type.Equal(u.Fields[i].Type) {
			return false
		}
	}
	return true
}

// String renders the type as e.g. "table{id:guid,name:string}".
func (t Type) String() string {
	if len(t.Fields) == 0 {
		return t.Kind.String()
	}
	var b strings.Builder
	b.WriteString(t.Kind.String())
	b.WriteByte('{')
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Span is a half-open byte range in the formula source.
// Spans are only used to position diagnostics.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsValid reports whether the span points into the source.
func (s Span) IsValid() bool {
	return s.End > s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

// ScopeID identifies the row scope introduced by a table operation such as
// Filter. Zero means "no scope".
type ScopeID int

// SymbolKind classifies what a resolved name denotes.
type SymbolKind uint8

const (
	// SymbolVariable is a plain variable, possibly holding a table value.
	SymbolVariable SymbolKind = iota
	// SymbolTable is a data source table. Whether it can be delegated is
	// decided by the metadata provider, not by this flag.
	SymbolTable
	// SymbolComputed is a named computed value.
	SymbolComputed
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolTable:
		return "table"
	case SymbolComputed:
		return "computed"
	default:
		return "variable"
	}
}

// Symbol is a name resolved by the binder.
type Symbol struct {
	Name string
	Kind SymbolKind
}
