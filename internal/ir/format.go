package ir

import (
	"fmt"
	"strings"
)

// Format renders n as compact formula text. The output is meant for humans
// (CLI output, diagnostics, golden files), not for re-parsing: row-scope
// columns print as their bare name.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n, false)
	return b.String()
}

func format(b *strings.Builder, n Node, nested bool) {
	switch v := n.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Literal:
		b.WriteString(FormatValue(v.Value))
	case *Record:
		b.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			format(b, f.Value, false)
		}
		b.WriteByte('}')
	case *Call:
		b.WriteString(v.Func.String())
		b.WriteByte('(')
		for i, a := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a, false)
		}
		b.WriteByte(')')
	case *Binary:
		if nested {
			b.WriteByte('(')
		}
		format(b, v.Left, true)
		b.WriteByte(' ')
		b.WriteString(v.Op.String())
		b.WriteByte(' ')
		format(b, v.Right, true)
		if nested {
			b.WriteByte(')')
		}
	case *Unary:
		b.WriteString(v.Op.String())
		format(b, v.Child, true)
	case *FieldAccess:
		format(b, v.Base, true)
		b.WriteByte('.')
		b.WriteString(v.Name)
	case *ScopeAccess:
		b.WriteString(v.Name)
	case *Ref:
		b.WriteString(v.Symbol.Name)
	case *Lazy:
		format(b, v.Child, nested)
	case *Chain:
		for i, c := range v.Nodes {
			if i > 0 {
				b.WriteString("; ")
			}
			format(b, c, false)
		}
	case *AggregateCoercion:
		format(b, v.Child, nested)
	case *Error:
		fmt.Fprintf(b, "#Error(%q)", v.Message)
	case *Embedded:
		if v.Value == nil {
			b.WriteString("_")
			return
		}
		b.WriteString(v.Value.String())
	default:
		fmt.Fprintf(b, "<%T>", n)
	}
}
