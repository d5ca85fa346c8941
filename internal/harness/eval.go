package harness

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
	"github.com/roach88/delegate/internal/querysql"
	"github.com/roach88/delegate/internal/store"
)

// Record is an evaluated row. Fields holds ir.Value or nested *Record values.
type Record struct {
	Columns []string
	Fields  map[string]any
}

// Table is an evaluated table value.
type Table struct {
	Columns []string
	Rows    []*Record
}

// Query is one SQL statement sent to the store during evaluation.
type Query struct {
	SQL    string   `json:"sql"`
	Params []string `json:"params,omitempty"`
}

// evaluator runs a tree locally. Table references are full scans ordered by
// primary key and plan calls run their compiled SQL against the store, so
// the rewritten and original trees can be checked against each other.
//
// Values are ir.Value, *Record or *Table.
type evaluator struct {
	ctx    context.Context
	store  *store.Store
	tables map[string]*metadata.Table
	vars   map[string]any

	frames []frame

	queries       []Query
	notifications []string
}

type frame struct {
	scope ir.ScopeID
	row   *Record
}

func newEvaluator(ctx context.Context, st *store.Store, tables map[string]*metadata.Table, vars map[string]any) *evaluator {
	return &evaluator{ctx: ctx, store: st, tables: tables, vars: vars}
}

func (e *evaluator) eval(n ir.Node) (any, error) {
	switch v := n.(type) {
	case *ir.Literal:
		if v.Value == nil {
			return ir.Null{}, nil
		}
		return v.Value, nil
	case *ir.Ref:
		return e.ref(v)
	case *ir.ScopeAccess:
		for i := len(e.frames) - 1; i >= 0; i-- {
			f := e.frames[i]
			if f.scope != v.Scope {
				continue
			}
			val, ok := f.row.Fields[v.Name]
			if !ok {
				return nil, fmt.Errorf("row of scope %d has no column %q", v.Scope, v.Name)
			}
			return val, nil
		}
		return nil, fmt.Errorf("scope %d is not open", v.Scope)
	case *ir.FieldAccess:
		base, err := e.eval(v.Base)
		if err != nil {
			return nil, err
		}
		switch b := base.(type) {
		case ir.Null:
			return ir.Null{}, nil
		case *Record:
			val, ok := b.Fields[v.Name]
			if !ok {
				return nil, fmt.Errorf("record has no field %q", v.Name)
			}
			return val, nil
		default:
			return nil, fmt.Errorf("field %q of %T", v.Name, base)
		}
	case *ir.Record:
		rec := &Record{Fields: make(map[string]any, len(v.Fields))}
		for _, f := range v.Fields {
			val, err := e.eval(f.Value)
			if err != nil {
				return nil, err
			}
			rec.Columns = append(rec.Columns, f.Name)
			rec.Fields[f.Name] = val
		}
		return rec, nil
	case *ir.Binary:
		return e.binary(v)
	case *ir.Unary:
		b, err := e.boolean(v.Child)
		if err != nil {
			return nil, err
		}
		return ir.Bool(!b), nil
	case *ir.Lazy:
		return e.eval(v.Child)
	case *ir.Chain:
		var last any = ir.Null{}
		for _, c := range v.Nodes {
			val, err := e.eval(c)
			if err != nil {
				return nil, err
			}
			last = val
		}
		return last, nil
	case *ir.AggregateCoercion:
		return e.eval(v.Child)
	case *ir.Call:
		return e.call(v)
	case *ir.Error:
		return nil, fmt.Errorf("error node: %s", v.Message)
	case *ir.Embedded:
		return nil, fmt.Errorf("query fragment outside a plan call")
	default:
		return nil, fmt.Errorf("cannot evaluate %T", n)
	}
}

func (e *evaluator) ref(r *ir.Ref) (any, error) {
	switch r.Symbol.Kind {
	case ir.SymbolTable:
		t, ok := e.tables[r.Symbol.Name]
		if !ok {
			return nil, fmt.Errorf("unknown table %q", r.Symbol.Name)
		}
		cols := make([]string, len(t.Columns))
		quoted := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
			quoted[i] = querysql.Quote(c.Name)
		}
		sql := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s COLLATE BINARY ASC",
			strings.Join(quoted, ", "), querysql.Quote(t.Name), querysql.Quote(t.PrimaryKey))
		return e.queryTable(t.Name, cols, sql, nil)
	default:
		v, ok := e.vars[r.Symbol.Name]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", r.Symbol.Name)
		}
		return v, nil
	}
}

func (e *evaluator) queryTable(table string, cols []string, sql string, params []any) (*Table, error) {
	e.record(sql, params)
	rows, err := e.store.QueryRows(e.ctx, table, sql, params...)
	if err != nil {
		return nil, err
	}
	out := &Table{Columns: cols, Rows: make([]*Record, len(rows))}
	for i, row := range rows {
		out.Rows[i] = fromStoreRow(cols, row)
	}
	return out, nil
}

func (e *evaluator) record(sql string, params []any) {
	q := Query{SQL: sql, Params: make([]string, len(params))}
	for i, p := range params {
		if p == nil {
			q.Params[i] = "NULL"
			continue
		}
		q.Params[i] = fmt.Sprint(p)
	}
	e.queries = append(e.queries, q)
}

func fromStoreRow(cols []string, row store.Row) *Record {
	rec := &Record{Columns: cols, Fields: make(map[string]any, len(cols))}
	for _, c := range cols {
		v, ok := row[c]
		if !ok {
			v = ir.Null{}
		}
		rec.Fields[c] = v
	}
	return rec
}

// Scalar implements querysql.Resolver.
func (e *evaluator) Scalar(n ir.Node) (ir.Value, error) {
	v, err := e.eval(n)
	if err != nil {
		return nil, err
	}
	s, ok := v.(ir.Value)
	if !ok {
		return nil, fmt.Errorf("%s is not a scalar", ir.Format(n))
	}
	return s, nil
}

// List implements querysql.Resolver.
func (e *evaluator) List(n ir.Node) ([]ir.Value, error) {
	t, err := e.table(n)
	if err != nil {
		return nil, err
	}
	return t.firstColumn()
}

func (t *Table) firstColumn() ([]ir.Value, error) {
	if len(t.Columns) == 0 {
		return nil, nil
	}
	out := make([]ir.Value, 0, len(t.Rows))
	for _, r := range t.Rows {
		v, ok := r.Fields[t.Columns[0]].(ir.Value)
		if !ok {
			return nil, fmt.Errorf("column %q is not scalar", t.Columns[0])
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *evaluator) table(n ir.Node) (*Table, error) {
	v, err := e.eval(n)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*Table)
	if !ok {
		return nil, fmt.Errorf("%s is not a table", ir.Format(n))
	}
	return t, nil
}

func (e *evaluator) boolean(n ir.Node) (bool, error) {
	v, err := e.eval(n)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case ir.Bool:
		return bool(b), nil
	case ir.Null:
		return false, nil
	default:
		return false, fmt.Errorf("%s is not a boolean", ir.Format(n))
	}
}

func (e *evaluator) text(n ir.Node) (string, bool, error) {
	v, err := e.Scalar(n)
	if err != nil {
		return "", false, err
	}
	switch s := v.(type) {
	case ir.String:
		return string(s), true, nil
	case ir.Null:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%s is not text", ir.Format(n))
	}
}

// withRow evaluates f with row pushed as the current row of scope.
func (e *evaluator) withRow(scope ir.ScopeID, row *Record, f func() (any, error)) (any, error) {
	e.frames = append(e.frames, frame{scope: scope, row: row})
	defer func() { e.frames = e.frames[:len(e.frames)-1] }()
	return f()
}

func (e *evaluator) matches(call *ir.Call, row *Record, preds []ir.Node) (bool, error) {
	ok := true
	_, err := e.withRow(call.Scope, row, func() (any, error) {
		for _, p := range preds {
			b, err := e.boolean(p)
			if err != nil {
				return nil, err
			}
			if !b {
				ok = false
				return nil, nil
			}
		}
		return nil, nil
	})
	return ok, err
}

func (e *evaluator) call(call *ir.Call) (any, error) {
	if call.Func.Info().Plan {
		return e.plan(call)
	}

	switch call.Func {
	case ir.FuncFilter:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		out := &Table{Columns: src.Columns, Rows: []*Record{}}
		for _, row := range src.Rows {
			ok, err := e.matches(call, row, call.Args[1:])
			if err != nil {
				return nil, err
			}
			if ok {
				out.Rows = append(out.Rows, row)
			}
		}
		return out, nil

	case ir.FuncLookUp:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		for _, row := range src.Rows {
			ok, err := e.matches(call, row, call.Args[1:2])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if len(call.Args) == 3 {
				return e.withRow(call.Scope, row, func() (any, error) { return e.eval(call.Args[2]) })
			}
			return row, nil
		}
		return ir.Null{}, nil

	case ir.FuncFirst:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		if len(src.Rows) == 0 {
			return ir.Null{}, nil
		}
		return src.Rows[0], nil

	case ir.FuncFirstN:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		n := int64(1)
		if len(call.Args) == 2 {
			v, err := e.Scalar(call.Args[1])
			if err != nil {
				return nil, err
			}
			n, err = rowCount(v)
			if err != nil {
				return nil, err
			}
		}
		n = min(max(n, 0), int64(len(src.Rows)))
		return &Table{Columns: src.Columns, Rows: src.Rows[:n]}, nil

	case ir.FuncCountRows:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		return ir.Int(len(src.Rows)), nil

	case ir.FuncSortByColumns:
		return e.sortByColumns(call)

	case ir.FuncShowColumns:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		var cols []string
		for _, a := range call.Args[1:] {
			name, _, err := e.text(a)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(src.Columns, name) {
				return nil, fmt.Errorf("ShowColumns: no column %q", name)
			}
			cols = append(cols, name)
		}
		out := &Table{Columns: cols, Rows: make([]*Record, len(src.Rows))}
		for i, r := range src.Rows {
			rec := &Record{Columns: cols, Fields: make(map[string]any, len(cols))}
			for _, c := range cols {
				rec.Fields[c] = r.Fields[c]
			}
			out.Rows[i] = rec
		}
		return out, nil

	case ir.FuncSum:
		src, err := e.table(call.Args[0])
		if err != nil {
			return nil, err
		}
		total := new(big.Rat)
		for _, row := range src.Rows {
			v, err := e.withRow(call.Scope, row, func() (any, error) { return e.eval(call.Args[1]) })
			if err != nil {
				return nil, err
			}
			if _, blank := v.(ir.Null); blank {
				continue
			}
			r, ok := number(v)
			if !ok {
				return nil, fmt.Errorf("Sum over non-numeric %T", v)
			}
			total.Add(total, r)
		}
		return fromRat(total), nil

	case ir.FuncIsBlank:
		v, err := e.eval(call.Args[0])
		if err != nil {
			return nil, err
		}
		_, blank := v.(ir.Null)
		return ir.Bool(blank), nil

	case ir.FuncIsError:
		_, err := e.eval(call.Args[0])
		return ir.Bool(err != nil), nil

	case ir.FuncNotify:
		msg, _, err := e.text(call.Args[0])
		if err != nil {
			return nil, err
		}
		e.notifications = append(e.notifications, msg)
		return ir.Bool(true), nil

	case ir.FuncAnd, ir.FuncOr:
		want := call.Func == ir.FuncOr
		for _, a := range call.Args {
			b, err := e.boolean(a)
			if err != nil {
				return nil, err
			}
			if b == want {
				return ir.Bool(want), nil
			}
		}
		return ir.Bool(!want), nil

	case ir.FuncNot:
		b, err := e.boolean(call.Args[0])
		if err != nil {
			return nil, err
		}
		return ir.Bool(!b), nil

	case ir.FuncStartsWith, ir.FuncEndsWith:
		s, ok, err := e.text(call.Args[0])
		if err != nil || !ok {
			return ir.Bool(false), err
		}
		affix, _, err := e.text(call.Args[1])
		if err != nil {
			return nil, err
		}
		s, affix = asciiLower(s), asciiLower(affix)
		if call.Func == ir.FuncStartsWith {
			return ir.Bool(strings.HasPrefix(s, affix)), nil
		}
		return ir.Bool(strings.HasSuffix(s, affix)), nil

	default:
		return nil, fmt.Errorf("%s is not supported by the local evaluator", call.Func)
	}
}

func (e *evaluator) sortByColumns(call *ir.Call) (any, error) {
	src, err := e.table(call.Args[0])
	if err != nil {
		return nil, err
	}
	type sortKey struct {
		col  string
		desc bool
	}
	var keys []sortKey
	for i := 1; i < len(call.Args); i += 2 {
		col, _, err := e.text(call.Args[i])
		if err != nil {
			return nil, err
		}
		k := sortKey{col: col}
		if i+1 < len(call.Args) {
			dir, _, err := e.text(call.Args[i+1])
			if err != nil {
				return nil, err
			}
			k.desc = dir == "Descending"
		}
		keys = append(keys, k)
	}
	rows := slices.Clone(src.Rows)
	var sortErr error
	slices.SortStableFunc(rows, func(a, b *Record) int {
		for _, k := range keys {
			c, err := orderValues(a.Fields[k.col], b.Fields[k.col])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return &Table{Columns: src.Columns, Rows: rows}, nil
}

// plan executes a plan call through the SQL compiler.
func (e *evaluator) plan(call *ir.Call) (any, error) {
	r, err := queryir.Decode(call)
	if err != nil {
		return nil, err
	}
	t, ok := e.tables[r.TableName()]
	if !ok {
		return nil, fmt.Errorf("plan over unknown table %q", r.TableName())
	}
	sql, params, err := querysql.NewSQLCompiler(e).Compile(r, t)
	if err != nil {
		return nil, err
	}

	if r.Shape == queryir.ShapeAggregate {
		e.record(sql, params)
		n, err := e.store.QueryCount(e.ctx, sql, params...)
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	}

	cols := []string(r.Columns)
	if len(cols) == 0 {
		for _, c := range t.Columns {
			cols = append(cols, c.Name)
		}
	}
	rows, err := e.queryTable(t.Name, cols, sql, params)
	if err != nil {
		return nil, err
	}
	if r.Shape == queryir.ShapeMany {
		return rows, nil
	}
	if len(rows.Rows) == 0 {
		return ir.Null{}, nil
	}
	return rows.Rows[0], nil
}

func (e *evaluator) binary(b *ir.Binary) (any, error) {
	if b.Op.IsLogical() {
		l, err := e.boolean(b.Left)
		if err != nil {
			return nil, err
		}
		if (b.Op == ir.OpOr) == l {
			return ir.Bool(l), nil
		}
		r, err := e.boolean(b.Right)
		return ir.Bool(r), err
	}

	l, err := e.Scalar(b.Left)
	if err != nil {
		return nil, err
	}
	if b.Op == ir.OpIn {
		set, err := e.List(b.Right)
		if err != nil {
			return nil, err
		}
		if isBlank(l) {
			return ir.Bool(false), nil
		}
		for _, v := range set {
			if valuesEqual(l, v) {
				return ir.Bool(true), nil
			}
		}
		return ir.Bool(false), nil
	}
	r, err := e.Scalar(b.Right)
	if err != nil {
		return nil, err
	}
	if b.Op.IsComparison() {
		return compare(b.Op, l, r)
	}
	return arithmetic(b.Op, l, r)
}

// compare follows SQL semantics for blank: only = and <> are defined on
// it, and a blank operand makes every ordering comparison false.
func compare(op ir.BinaryOp, l, r ir.Value) (ir.Value, error) {
	switch op {
	case ir.OpEq:
		return ir.Bool(valuesEqual(l, r)), nil
	case ir.OpNeq:
		return ir.Bool(!valuesEqual(l, r)), nil
	}
	if isBlank(l) || isBlank(r) {
		return ir.Bool(false), nil
	}
	c, err := orderValues(l, r)
	if err != nil {
		return nil, err
	}
	switch op {
	case ir.OpLt:
		return ir.Bool(c < 0), nil
	case ir.OpLte:
		return ir.Bool(c <= 0), nil
	case ir.OpGt:
		return ir.Bool(c > 0), nil
	default:
		return ir.Bool(c >= 0), nil
	}
}

func arithmetic(op ir.BinaryOp, l, r ir.Value) (ir.Value, error) {
	if op == ir.OpConcat {
		return ir.String(plainText(l) + plainText(r)), nil
	}
	if isBlank(l) || isBlank(r) {
		return ir.Null{}, nil
	}
	x, ok1 := number(l)
	y, ok2 := number(r)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%s needs numbers, got %s and %s", op, l.Kind(), r.Kind())
	}
	z := new(big.Rat)
	switch op {
	case ir.OpAdd:
		z.Add(x, y)
	case ir.OpSub:
		z.Sub(x, y)
	case ir.OpMul:
		z.Mul(x, y)
	case ir.OpDiv:
		if y.Sign() == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		z.Quo(x, y)
	default:
		return nil, fmt.Errorf("unsupported operator %s", op)
	}
	return fromRat(z), nil
}

func isBlank(v any) bool {
	_, ok := v.(ir.Null)
	return ok || v == nil
}

// number returns the exact value of a numeric literal.
func number(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case ir.Int:
		return new(big.Rat).SetInt64(int64(n)), true
	case ir.Decimal:
		return new(big.Rat).SetString(string(n))
	default:
		return nil, false
	}
}

// fromRat returns an Int when r is integral and a Decimal otherwise.
func fromRat(r *big.Rat) ir.Value {
	if r.IsInt() && r.Num().IsInt64() {
		return ir.Int(r.Num().Int64())
	}
	s := r.FloatString(12)
	s = strings.TrimRight(s, "0")
	return ir.Decimal(strings.TrimSuffix(s, "."))
}

func valuesEqual(a, b any) bool {
	if isBlank(a) || isBlank(b) {
		return isBlank(a) && isBlank(b)
	}
	c, err := orderValues(a, b)
	return err == nil && c == 0
}

// orderValues orders two values the way SQLite orders the stored form:
// blank first, numbers numerically, text by bytes.
func orderValues(a, b any) (int, error) {
	ab, bb := isBlank(a), isBlank(b)
	switch {
	case ab && bb:
		return 0, nil
	case ab:
		return -1, nil
	case bb:
		return 1, nil
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return x.Cmp(y), nil
	}
	switch x := a.(type) {
	case ir.String:
		if y, ok := b.(ir.String); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case ir.Guid:
		if y, ok := b.(ir.Guid); ok {
			return strings.Compare(x.String(), y.String()), nil
		}
	case ir.Bool:
		if y, ok := b.(ir.Bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !bool(x):
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func rowCount(v ir.Value) (int64, error) {
	if isBlank(v) {
		return 0, nil
	}
	r, ok := number(v)
	if !ok {
		return 0, fmt.Errorf("row count must be a number, got %s", v.Kind())
	}
	f, _ := r.Float64()
	return int64(f), nil
}

func plainText(v ir.Value) string {
	switch s := v.(type) {
	case ir.Null:
		return ""
	case ir.String:
		return string(s)
	default:
		return ir.FormatValue(v)
	}
}

// asciiLower lowercases ASCII letters only, as SQLite's LIKE does.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// Render formats an evaluated value deterministically. Numbers are
// normalized so that 3 and 3.0 render alike.
func Render(v any) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("Blank()")
	case *Record:
		b.WriteByte('{')
		for i, c := range val.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c)
			b.WriteString(": ")
			render(b, val.Fields[c])
		}
		b.WriteByte('}')
	case *Table:
		b.WriteByte('[')
		for i, r := range val.Rows {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, r)
		}
		b.WriteByte(']')
	case ir.Value:
		if r, ok := number(val); ok {
			b.WriteString(ir.FormatValue(fromRat(r)))
			return
		}
		b.WriteString(ir.FormatValue(val))
	default:
		fmt.Fprintf(b, "%v", v)
	}
}
