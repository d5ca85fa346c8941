package queryir

import (
	"fmt"

	"github.com/roach88/delegate/internal/ir"
)

// ValidationResult contains the structural problems found in a plan.
type ValidationResult struct {
	// IsWellFormed is true when no problem was found.
	IsWellFormed bool

	// Problems lists every issue found, in traversal order.
	Problems []string
}

// Validate checks that a plan is well formed:
//  1. A table reference is present
//  2. Every predicate names a field and carries a value node
//  3. Row-set plans carry an explicit limit or a positive ceiling
//  4. By-key plans carry a key
//  5. Sort keys and projected columns are not repeated
//  6. Aggregate plans name a known aggregation
//
// Validate accumulates every problem rather than failing fast, and has no
// side effects. Capability checks are separate (CheckCapabilities).
func Validate(r Retrieve) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateRetrieve(r)
	return ValidationResult{
		IsWellFormed: len(v.problems) == 0,
		Problems:     v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateRetrieve(r Retrieve) {
	if r.Table == nil || r.Table.Symbol.Name == "" {
		v.addProblem("plan has no source table")
	}

	switch r.Shape {
	case ShapeSingle, ShapeMany:
		if r.Top == nil && r.Ceiling <= 0 {
			v.addProblem("%s plan needs a row limit or a positive row ceiling", r.Shape)
		}
	case ShapeByKey:
		if r.Key == nil {
			v.addProblem("by_key plan has no key")
		}
		if r.Filter != nil || len(r.OrderBy) > 0 || r.Top != nil {
			v.addProblem("by_key plan cannot carry a filter, order or limit")
		}
	case ShapeAggregate:
		if r.Aggregate != AggregateCount {
			v.addProblem("unknown aggregation %q", string(r.Aggregate))
		}
	default:
		v.addProblem("unknown plan shape %s", r.Shape)
	}

	if r.Filter != nil {
		v.validatePredicate(r.Filter)
	}

	seen := map[string]bool{}
	for _, k := range r.OrderBy {
		if k.Field == "" {
			v.addProblem("sort key without a field")
		}
		if seen[k.Field] {
			v.addProblem("field %q sorted twice", k.Field)
		}
		seen[k.Field] = true
	}

	seen = map[string]bool{}
	for _, c := range r.Columns {
		if seen[c] {
			v.addProblem("column %q projected twice", c)
		}
		seen[c] = true
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case *Compare:
		v.validateOperand("comparison", pred.Field, pred.Value)
	case *StartsWith:
		v.validateOperand("StartsWith", pred.Field, pred.Prefix)
	case *EndsWith:
		v.validateOperand("EndsWith", pred.Field, pred.Suffix)
	case *In:
		v.validateOperand("in", pred.Field, pred.Set)
	case *And:
		v.validateCombinator("And", pred.Predicates)
	case *Or:
		v.validateCombinator("Or", pred.Predicates)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateOperand(what, field string, value ir.Node) {
	if field == "" {
		v.addProblem("%s without a field", what)
	}
	if value == nil {
		v.addProblem("%s on field %q has no value", what, field)
	}
}

func (v *validator) validateCombinator(what string, preds []Predicate) {
	if len(preds) < 2 {
		v.addProblem("%s needs at least two predicates, got %d", what, len(preds))
	}
	for _, p := range preds {
		if p == nil {
			v.addProblem("%s contains a nil predicate", what)
			continue
		}
		v.validatePredicate(p)
	}
}
