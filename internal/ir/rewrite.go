package ir

import "fmt"

// Rewriter is the contract shared by every tree pass.
//
// Rewrite maps a node to a pass-specific result R (for the delegation planner,
// either a plain node or a pending delegation candidate). Materialize turns a
// result back into the node to splice into the parent.
//
// Passes implement Rewrite with a type switch over the variants they care
// about and hand every other node to Default.
type Rewriter[R any] interface {
	Rewrite(n Node) R
	Materialize(r R) Node
}

// Default is the structure-preserving rewrite for composite nodes: each child
// is rewritten with r and materialized, and n is rebuilt only if at least one
// materialized child differs by identity from the original child. Leaves are
// returned unchanged.
func Default[R any](r Rewriter[R], n Node) Node {
	return MapChildren(n, func(child Node) Node {
		return r.Materialize(r.Rewrite(child))
	})
}

// MapChildren returns n with every direct child replaced by f(child).
//
// CRITICAL: when f returns each child unchanged the original n is returned,
// not a copy. Snapshot and idempotence checks rely on untouched subtrees
// keeping their identity.
func MapChildren(n Node, f func(Node) Node) Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *Literal, *ScopeAccess, *Ref, *Error, *Embedded:
		return n
	case *Record:
		fields, changed := mapFields(v.Fields, f)
		if !changed {
			return n
		}
		return &Record{Meta: v.Meta, Fields: fields}
	case *Call:
		args, changed := mapNodes(v.Args, f)
		if !changed {
			return n
		}
		return &Call{Meta: v.Meta, Func: v.Func, Scope: v.Scope, Args: args}
	case *Binary:
		left, right := f(v.Left), f(v.Right)
		if left == v.Left && right == v.Right {
			return n
		}
		return &Binary{Meta: v.Meta, Op: v.Op, Left: left, Right: right}
	case *Unary:
		child := f(v.Child)
		if child == v.Child {
			return n
		}
		return &Unary{Meta: v.Meta, Op: v.Op, Child: child}
	case *FieldAccess:
		base := f(v.Base)
		if base == v.Base {
			return n
		}
		return &FieldAccess{Meta: v.Meta, Base: base, Name: v.Name}
	case *Lazy:
		child := f(v.Child)
		if child == v.Child {
			return n
		}
		return &Lazy{Meta: v.Meta, Child: child}
	case *Chain:
		nodes, changed := mapNodes(v.Nodes, f)
		if !changed {
			return n
		}
		return &Chain{Meta: v.Meta, Nodes: nodes}
	case *AggregateCoercion:
		child := f(v.Child)
		if child == v.Child {
			return n
		}
		return &AggregateCoercion{Meta: v.Meta, Child: child, Coercions: v.Coercions}
	default:
		panic(fmt.Sprintf("ir: unhandled node type %T", n))
	}
}

// mapNodes applies f to each node. The input slice is returned untouched
// (changed == false) when f preserves every element.
func mapNodes(nodes []Node, f func(Node) Node) ([]Node, bool) {
	var out []Node
	for i, n := range nodes {
		m := f(n)
		if out == nil {
			if m == n {
				continue
			}
			out = make([]Node, len(nodes))
			copy(out, nodes[:i])
		}
		out[i] = m
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}

func mapFields(fields []RecordField, f func(Node) Node) ([]RecordField, bool) {
	var out []RecordField
	for i, fld := range fields {
		m := f(fld.Value)
		if out == nil {
			if m == fld.Value {
				continue
			}
			out = make([]RecordField, len(fields))
			copy(out, fields[:i])
		}
		out[i] = RecordField{Name: fld.Name, Value: m}
	}
	if out == nil {
		return fields, false
	}
	return out, true
}

// Children returns the direct children of n in evaluation order.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Record:
		out := make([]Node, len(v.Fields))
		for i, f := range v.Fields {
			out[i] = f.Value
		}
		return out
	case *Call:
		return v.Args
	case *Binary:
		return []Node{v.Left, v.Right}
	case *Unary:
		return []Node{v.Child}
	case *FieldAccess:
		return []Node{v.Base}
	case *Lazy:
		return []Node{v.Child}
	case *Chain:
		return v.Nodes
	case *AggregateCoercion:
		return []Node{v.Child}
	default:
		return nil
	}
}

// Transform rewrites n bottom-up with f, preserving identity wherever f does.
func Transform(n Node, f func(Node) Node) Node {
	if n == nil {
		return nil
	}
	n = MapChildren(n, func(child Node) Node {
		return Transform(child, f)
	})
	return f(n)
}
