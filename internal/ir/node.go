package ir

// Node is a sealed interface over the expression tree variants.
//
// Node types:
//   - Literal: typed scalar value
//   - Record: ordered field -> node construction
//   - Call: builtin function call, optionally introducing a row scope
//   - Binary, Unary: operators
//   - FieldAccess: column of a record-valued node
//   - ScopeAccess: column of the current row of an enclosing table operation
//   - Ref: resolved name (table, variable or computed value)
//   - Lazy: deferred / short-circuit argument wrapper
//   - Chain: sequence of nodes, value of the last
//   - AggregateCoercion: per-column coercion of a record or table
//   - Error: binder error placeholder
//   - Embedded: opaque remote-query fragment inside a plan call
type Node interface {
	irNode() // Marker method - seals interface to this package

	// Type is the result type assigned by the binder.
	Type() Type

	// Span locates the node in the formula source.
	Span() Span
}

// Meta carries the type and span common to every node.
type Meta struct {
	T  Type
	At Span
}

func (m Meta) Type() Type { return m.T }
func (m Meta) Span() Span { return m.At }

// Literal is a typed scalar value. T usually equals Value.Kind() but the
// binder may widen it, e.g. an Int literal typed as decimal.
type Literal struct {
	Meta
	Value Value
}

// RecordField is one named entry of a Record node.
type RecordField struct {
	Name  string
	Value Node
}

// Record constructs a record from ordered fields.
type Record struct {
	Meta
	Fields []RecordField
}

// Call invokes a builtin. Scope is non-zero when the call evaluates some of
// its arguments once per row of its table argument (Filter, LookUp, ...);
// ScopeAccess nodes with the same id read that row.
type Call struct {
	Meta
	Func  FuncID
	Scope ScopeID
	Args  []Node
}

// Binary applies a binary operator.
type Binary struct {
	Meta
	Op    BinaryOp
	Left  Node
	Right Node
}

// Unary applies a unary operator.
type Unary struct {
	Meta
	Op    UnaryOp
	Child Node
}

// FieldAccess reads a column of a record-valued node.
type FieldAccess struct {
	Meta
	Base Node
	Name string
}

// ScopeAccess reads a column of the current row of the table operation that
// introduced Scope.
type ScopeAccess struct {
	Meta
	Scope ScopeID
	Name  string
}

// Ref is a name resolved by the binder.
type Ref struct {
	Meta
	Symbol Symbol
}

// Lazy wraps an argument whose evaluation is deferred or short-circuited,
// such as a Filter predicate.
type Lazy struct {
	Meta
	Child Node
}

// Chain evaluates nodes in order and yields the last value.
type Chain struct {
	Meta
	Nodes []Node
}

// Coercion converts one column of an aggregate to another kind.
type Coercion struct {
	Field string
	To    Kind
}

// AggregateCoercion applies per-column coercions to a record or table.
type AggregateCoercion struct {
	Meta
	Child     Node
	Coercions []Coercion
}

// Error marks a subtree the binder could not resolve.
type Error struct {
	Meta
	Message string
}

// Fragment is a remote-query fragment carried opaquely inside the tree.
// The ir package never looks inside; fragments that also implement
// interface{ EqualFragment(Fragment) bool } get precise structural equality.
type Fragment interface {
	String() string
}

// Embedded carries a Fragment as an argument of a plan call. A nil Value
// stands for an absent clause (no filter, no order-by, ...).
type Embedded struct {
	Meta
	Value Fragment
}

func (*Literal) irNode()           {}
func (*Record) irNode()            {}
func (*Call) irNode()              {}
func (*Binary) irNode()            {}
func (*Unary) irNode()             {}
func (*FieldAccess) irNode()       {}
func (*ScopeAccess) irNode()       {}
func (*Ref) irNode()               {}
func (*Lazy) irNode()              {}
func (*Chain) irNode()             {}
func (*AggregateCoercion) irNode() {}
func (*Error) irNode()             {}
func (*Embedded) irNode()          {}

// Unwrap strips any Lazy wrappers around n.
func Unwrap(n Node) Node {
	for {
		l, ok := n.(*Lazy)
		if !ok {
			return n
		}
		n = l.Child
	}
}
