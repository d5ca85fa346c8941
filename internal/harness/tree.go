package harness

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/testutil"
)

// DecodeFormula builds a bound tree from its YAML form, typing every node
// the way a binder would.
//
// A node is either a plain scalar (an int or float is a number, a string is
// text, true/false a boolean, null is blank) or a mapping with one form key:
//
//	{table: Accounts}                 certified remote table
//	{var: Names}                      local variable
//	{num: 5} {str: x} {bool: true}    typed literals
//	{guid: "..."} {decimal: "1.50"} {blank: null}
//	{col: revenue}                    column of the innermost row scope
//	{field: name, of: <node>}         record field access
//	{not: <node>}
//	{gt: [<node>, <node>]}            binary operator by name (eq, and, in, add, ...)
//	{call: Filter, args: [...]}       function call
//
// Filter, LookUp and Sum evaluate their arguments after the first in a new
// row scope over the first argument.
func DecodeFormula(n *yaml.Node, tables []*metadata.Table, vars map[string]ir.Type) (ir.Node, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	d := &decoder{
		b:      testutil.NewBuilder(),
		tables: make(map[string]*metadata.Table, len(tables)),
		vars:   vars,
	}
	for _, t := range tables {
		d.tables[t.Name] = t
	}
	node, err := d.decode(n)
	if err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	return node, nil
}

type decoder struct {
	b      *testutil.Builder
	tables map[string]*metadata.Table
	vars   map[string]ir.Type

	// rows is the stack of enclosing row scopes, innermost last.
	rows []testutil.Row

	// err is the first error raised inside a row-scoped argument, where
	// the builder callback cannot return one.
	err error
}

var scopedFuncs = map[ir.FuncID]bool{
	ir.FuncFilter: true,
	ir.FuncLookUp: true,
	ir.FuncSum:    true,
}

func (d *decoder) decode(n *yaml.Node) (ir.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.MappingNode:
		return d.mapping(n)
	default:
		return nil, d.errorf(n, "expected a scalar or mapping node")
	}
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("formula line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func (d *decoder) scalar(n *yaml.Node) (ir.Node, error) {
	switch n.Tag {
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, d.errorf(n, "%v", err)
		}
		return d.b.Num(i), nil
	case "!!float":
		return d.decimal(n)
	case "!!bool":
		return d.b.Bool(n.Value == "true"), nil
	case "!!null":
		return d.b.Lit(ir.Null{}), nil
	default:
		return d.b.Str(n.Value), nil
	}
}

func (d *decoder) decimal(n *yaml.Node) (ir.Node, error) {
	v, err := ir.NewDecimal(n.Value)
	if err != nil {
		return nil, d.errorf(n, "%v", err)
	}
	return d.b.Lit(v), nil
}

func (d *decoder) mapping(n *yaml.Node) (ir.Node, error) {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	var form string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		fields[key] = n.Content[i+1]
		if key != "of" && key != "args" {
			if form != "" {
				return nil, d.errorf(n, "node has both %q and %q", form, key)
			}
			form = key
		}
	}
	val := fields[form]

	switch form {
	case "table":
		t, ok := d.tables[val.Value]
		if !ok {
			return nil, d.errorf(val, "unknown table %q", val.Value)
		}
		return d.b.Table(t), nil
	case "var":
		t, ok := d.vars[val.Value]
		if !ok {
			return nil, d.errorf(val, "unknown variable %q", val.Value)
		}
		return d.b.Var(val.Value, t), nil
	case "num":
		if val.Tag == "!!float" {
			return d.decimal(val)
		}
		return d.scalar(val)
	case "str":
		return d.b.Str(val.Value), nil
	case "bool":
		return d.b.Bool(val.Value == "true"), nil
	case "decimal":
		return d.decimal(val)
	case "guid":
		g, err := ir.ParseGuid(val.Value)
		if err != nil {
			return nil, d.errorf(val, "%v", err)
		}
		return d.b.Guid(g), nil
	case "blank":
		return d.b.Lit(ir.Null{}), nil
	case "col":
		if len(d.rows) == 0 {
			return nil, d.errorf(val, "column %q outside a row scope", val.Value)
		}
		row := d.rows[len(d.rows)-1]
		if !row.Has(val.Value) {
			return nil, d.errorf(val, "row has no column %q", val.Value)
		}
		return row.Col(val.Value), nil
	case "field":
		of, ok := fields["of"]
		if !ok {
			return nil, d.errorf(n, "field %q needs of", val.Value)
		}
		base, err := d.decode(of)
		if err != nil {
			return nil, err
		}
		if _, ok := base.Type().Field(val.Value); !ok {
			return nil, d.errorf(val, "%s has no field %q", base.Type(), val.Value)
		}
		return d.b.Field(base, val.Value), nil
	case "not":
		child, err := d.decode(val)
		if err != nil {
			return nil, err
		}
		return d.b.Not(child), nil
	case "call":
		return d.call(n, val.Value, fields["args"])
	case "":
		return nil, d.errorf(n, "empty node")
	}

	op, err := ir.ParseBinaryOp(form)
	if err != nil {
		return nil, d.errorf(n, "unknown node form %q", form)
	}
	if val.Kind != yaml.SequenceNode || len(val.Content) != 2 {
		return nil, d.errorf(val, "%s needs exactly two operands", form)
	}
	left, err := d.decode(val.Content[0])
	if err != nil {
		return nil, err
	}
	right, err := d.decode(val.Content[1])
	if err != nil {
		return nil, err
	}
	return d.b.Bin(op, left, right), nil
}

func (d *decoder) call(n *yaml.Node, name string, args *yaml.Node) (ir.Node, error) {
	f, ok := ir.LookupFunc(name)
	if !ok || f.Info().Plan {
		return nil, d.errorf(n, "unknown function %q", name)
	}
	var argNodes []*yaml.Node
	if args != nil {
		if args.Kind != yaml.SequenceNode {
			return nil, d.errorf(args, "args must be a list")
		}
		argNodes = args.Content
	}
	if !f.AcceptsArgs(len(argNodes)) {
		return nil, d.errorf(n, "%s does not take %d arguments", name, len(argNodes))
	}

	if scopedFuncs[f] {
		return d.scopedCall(f, argNodes)
	}

	decoded := make([]ir.Node, len(argNodes))
	for i, a := range argNodes {
		node, err := d.decode(a)
		if err != nil {
			return nil, err
		}
		decoded[i] = node
	}
	t, err := callType(f, decoded)
	if err != nil {
		return nil, d.errorf(n, "%v", err)
	}
	return d.b.Call(f, t, decoded...), nil
}

func (d *decoder) scopedCall(f ir.FuncID, args []*yaml.Node) (ir.Node, error) {
	src, err := d.decode(args[0])
	if err != nil {
		return nil, err
	}
	if !src.Type().IsTable() {
		return nil, d.errorf(args[0], "%s needs a table, got %s", f, src.Type())
	}

	preds := make([]func(testutil.Row) ir.Node, len(args)-1)
	for i, a := range args[1:] {
		preds[i] = func(r testutil.Row) ir.Node {
			d.rows = append(d.rows, r)
			defer func() { d.rows = d.rows[:len(d.rows)-1] }()
			node, err := d.decode(a)
			if err != nil {
				if d.err == nil {
					d.err = err
				}
				return &ir.Error{Meta: ir.Meta{T: ir.Scalar(ir.KindError)}, Message: err.Error()}
			}
			return node
		}
	}

	var t ir.Type
	switch f {
	case ir.FuncFilter:
		t = src.Type()
	case ir.FuncLookUp:
		t = src.Type().Row()
	default:
		t = ir.Scalar(ir.KindNumber)
	}
	call := d.b.Scoped(f, t, src, preds...)
	if f == ir.FuncLookUp && len(call.Args) == 3 {
		// The result formula decides the type.
		call.Meta.T = call.Args[2].Type()
	}
	return call, nil
}

// callType is the result type of an unscoped call.
func callType(f ir.FuncID, args []ir.Node) (ir.Type, error) {
	switch f {
	case ir.FuncFirstN, ir.FuncSortByColumns:
		return tableArg(f, args)
	case ir.FuncFirst:
		t, err := tableArg(f, args)
		return t.Row(), err
	case ir.FuncPatch, ir.FuncCollect, ir.FuncRemove:
		t, err := tableArg(f, args)
		return t.Row(), err
	case ir.FuncCountRows:
		_, err := tableArg(f, args)
		return ir.Scalar(ir.KindNumber), err
	case ir.FuncShowColumns:
		src, err := tableArg(f, args)
		if err != nil {
			return ir.Type{}, err
		}
		var fields []ir.Field
		for _, a := range args[1:] {
			lit, ok := a.(*ir.Literal)
			if !ok {
				return ir.Type{}, fmt.Errorf("ShowColumns takes column names")
			}
			name, ok := lit.Value.(ir.String)
			if !ok {
				return ir.Type{}, fmt.Errorf("ShowColumns takes column names")
			}
			ft, ok := src.Field(string(name))
			if !ok {
				return ir.Type{}, fmt.Errorf("ShowColumns: no column %q", string(name))
			}
			fields = append(fields, ir.Field{Name: string(name), Type: ft})
		}
		return ir.TableOf(fields...), nil
	case ir.FuncIsBlank, ir.FuncIsError, ir.FuncAnd, ir.FuncOr, ir.FuncNot,
		ir.FuncStartsWith, ir.FuncEndsWith, ir.FuncNotify, ir.FuncNavigate, ir.FuncSet:
		return ir.Scalar(ir.KindBoolean), nil
	default:
		return ir.Type{}, fmt.Errorf("%s cannot be used in a scenario formula", f)
	}
}

func tableArg(f ir.FuncID, args []ir.Node) (ir.Type, error) {
	if len(args) == 0 || !args[0].Type().IsTable() {
		return ir.Type{}, fmt.Errorf("%s needs a table as its first argument", f)
	}
	return args[0].Type(), nil
}
