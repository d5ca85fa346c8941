package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/delegate/internal/ir"
)

// Predicate represents a remote filter condition.
//
// This is a sealed interface - only types in this package implement it.
// Every Predicate is also an ir.Fragment so it can ride inside a plan call
// as the Value of an ir.Embedded node.
//
// Predicate types:
//   - Compare: field OP value for =, <>, <, <=, >, >=
//   - StartsWith / EndsWith: string prefix / suffix match
//   - In: field is a member of a set value
//   - And / Or: N-ary combinators
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package

	String() string
}

// CompareOp is the operator of a Compare predicate.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Neq
	Lt
	Lte
	Gt
	Gte
)

var compareOpText = [...]string{
	Eq:  "=",
	Neq: "<>",
	Lt:  "<",
	Lte: "<=",
	Gt:  ">",
	Gte: ">=",
}

func (op CompareOp) String() string {
	if int(op) < len(compareOpText) {
		return compareOpText[op]
	}
	return fmt.Sprintf("cmp(%d)", uint8(op))
}

// commuted maps each operator to its operand-swapped equivalent:
// "a OP b" holds exactly when "b commuted[OP] a" holds.
var commuted = [...]CompareOp{
	Eq:  Eq,
	Neq: Neq,
	Lt:  Gt,
	Lte: Gte,
	Gt:  Lt,
	Gte: Lte,
}

// Commute returns the operator to use after swapping the operands of op,
// so that "5 < field" becomes "field > 5".
func Commute(op CompareOp) CompareOp {
	return commuted[op]
}

// CompareOpFor maps an expression-tree comparison operator to its remote
// counterpart. ok is false for non-comparison operators.
func CompareOpFor(op ir.BinaryOp) (CompareOp, bool) {
	switch op {
	case ir.OpEq:
		return Eq, true
	case ir.OpNeq:
		return Neq, true
	case ir.OpLt:
		return Lt, true
	case ir.OpLte:
		return Lte, true
	case ir.OpGt:
		return Gt, true
	case ir.OpGte:
		return Gte, true
	default:
		return 0, false
	}
}

// Compare represents a field-operator-value predicate.
//
// Semantics:
//
//	<field> <op> <value>
//
// Value is evaluated by the executor before the query is issued. It may be
// a literal, a variable, or itself a plan call (correlated lookup).
//
// Example:
//
//	Compare{Field: "revenue", Op: Gt, Value: <literal 1000>}
//
// Translates to SQL:
//
//	"revenue" > ?
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.Node
}

func (*Compare) predicateNode() {}

func (p *Compare) String() string {
	return fmt.Sprintf("%s %s %s", p.Field, p.Op, ir.Format(p.Value))
}

// StartsWith matches rows whose field begins with Prefix.
type StartsWith struct {
	Field  string
	Prefix ir.Node
}

func (*StartsWith) predicateNode() {}

func (p *StartsWith) String() string {
	return fmt.Sprintf("StartsWith(%s, %s)", p.Field, ir.Format(p.Prefix))
}

// EndsWith matches rows whose field ends with Suffix.
type EndsWith struct {
	Field  string
	Suffix ir.Node
}

func (*EndsWith) predicateNode() {}

func (p *EndsWith) String() string {
	return fmt.Sprintf("EndsWith(%s, %s)", p.Field, ir.Format(p.Suffix))
}

// In matches rows whose field is a member of Set. Set evaluates to a
// single-column table of candidate values.
type In struct {
	Field string
	Set   ir.Node
}

func (*In) predicateNode() {}

func (p *In) String() string {
	return fmt.Sprintf("%s in %s", p.Field, ir.Format(p.Set))
}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

func (p *And) String() string { return joinPredicates(p.Predicates, " && ") }

// Or represents a disjunction of predicates (any must be true).
// Empty Predicates means "always false".
type Or struct {
	Predicates []Predicate
}

func (*Or) predicateNode() {}

func (p *Or) String() string { return joinPredicates(p.Predicates, " || ") }

func joinPredicates(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		s := p.String()
		switch p.(type) {
		case *And, *Or:
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

// Conjoin combines two predicates with AND. A nil side is ignored and
// nested conjunctions are flattened, so Conjoin(Conjoin(a, b), c) and
// Conjoin(a, Conjoin(b, c)) produce the same fragment.
func Conjoin(a, b Predicate) Predicate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	var preds []Predicate
	for _, p := range []Predicate{a, b} {
		if and, ok := p.(*And); ok {
			preds = append(preds, and.Predicates...)
			continue
		}
		preds = append(preds, p)
	}
	return &And{Predicates: preds}
}

// EqualPredicate reports whether two predicates are structurally equal.
// Value nodes are compared with ir.Equal, so spans do not matter.
func EqualPredicate(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Compare:
		y, ok := b.(*Compare)
		return ok && x.Field == y.Field && x.Op == y.Op && ir.Equal(x.Value, y.Value)
	case *StartsWith:
		y, ok := b.(*StartsWith)
		return ok && x.Field == y.Field && ir.Equal(x.Prefix, y.Prefix)
	case *EndsWith:
		y, ok := b.(*EndsWith)
		return ok && x.Field == y.Field && ir.Equal(x.Suffix, y.Suffix)
	case *In:
		y, ok := b.(*In)
		return ok && x.Field == y.Field && ir.Equal(x.Set, y.Set)
	case *And:
		y, ok := b.(*And)
		return ok && equalPredicates(x.Predicates, y.Predicates)
	case *Or:
		y, ok := b.(*Or)
		return ok && equalPredicates(x.Predicates, y.Predicates)
	default:
		return false
	}
}

func equalPredicates(a, b []Predicate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualPredicate(a[i], b[i]) {
			return false
		}
	}
	return true
}

// EqualFragment lets ir.Equal compare embedded predicates structurally.
func (p *Compare) EqualFragment(f ir.Fragment) bool    { return equalFragment(p, f) }
func (p *StartsWith) EqualFragment(f ir.Fragment) bool { return equalFragment(p, f) }
func (p *EndsWith) EqualFragment(f ir.Fragment) bool   { return equalFragment(p, f) }
func (p *In) EqualFragment(f ir.Fragment) bool         { return equalFragment(p, f) }
func (p *And) EqualFragment(f ir.Fragment) bool        { return equalFragment(p, f) }
func (p *Or) EqualFragment(f ir.Fragment) bool         { return equalFragment(p, f) }

func equalFragment(p Predicate, f ir.Fragment) bool {
	q, ok := f.(Predicate)
	return ok && EqualPredicate(p, q)
}

// Fields returns the table columns a predicate reads, in first-use order.
func Fields(p Predicate) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Predicate)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	walk = func(p Predicate) {
		switch x := p.(type) {
		case *Compare:
			add(x.Field)
		case *StartsWith:
			add(x.Field)
		case *EndsWith:
			add(x.Field)
		case *In:
			add(x.Field)
		case *And:
			for _, c := range x.Predicates {
				walk(c)
			}
		case *Or:
			for _, c := range x.Predicates {
				walk(c)
			}
		}
	}
	walk(p)
	return out
}

// SortKey is one column of an OrderBy.
type SortKey struct {
	Field      string
	Descending bool
}

// OrderBy is an ordered list of sort keys.
type OrderBy []SortKey

func (o OrderBy) String() string {
	parts := make([]string, len(o))
	for i, k := range o {
		dir := "asc"
		if k.Descending {
			dir = "desc"
		}
		parts[i] = k.Field + " " + dir
	}
	return "order by " + strings.Join(parts, ", ")
}

// EqualFragment reports whether f is the same ordering.
func (o OrderBy) EqualFragment(f ir.Fragment) bool {
	p, ok := f.(OrderBy)
	if !ok || len(o) != len(p) {
		return false
	}
	for i := range o {
		if o[i] != p[i] {
			return false
		}
	}
	return true
}

// ColumnMap lists the columns an executor must return, in order.
type ColumnMap []string

func (c ColumnMap) String() string {
	return "columns " + strings.Join(c, ", ")
}

// EqualFragment reports whether f projects the same columns.
func (c ColumnMap) EqualFragment(f ir.Fragment) bool {
	d, ok := f.(ColumnMap)
	if !ok || len(c) != len(d) {
		return false
	}
	for i := range c {
		if c[i] != d[i] {
			return false
		}
	}
	return true
}

// Aggregate names the scalar aggregation of an aggregate plan.
type Aggregate string

const (
	// AggregateCount counts the matching rows.
	AggregateCount Aggregate = "count"
)

func (a Aggregate) String() string { return "aggregate " + string(a) }

// RowCeiling is the configured maximum number of rows fetched when the
// formula did not ask for an explicit limit.
type RowCeiling int

func (r RowCeiling) String() string { return fmt.Sprintf("ceiling %d", int(r)) }
