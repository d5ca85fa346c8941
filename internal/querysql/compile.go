// Package querysql compiles delegated retrieve plans to parameterized SQL for
// SQLite. It is the reference executor's backend: the harness runs every plan
// call it meets through it against an in-memory store.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// Resolver computes the runtime values of the value nodes a plan embeds:
// comparison operands, row limits, keys and membership sets.
type Resolver interface {
	// Scalar evaluates n to a single value.
	Scalar(n ir.Node) (ir.Value, error)

	// List evaluates a single-column table node to its values in order.
	List(n ir.Node) ([]ir.Value, error)
}

// SQLCompiler compiles decoded plans to parameterized SQL.
//
// CRITICAL: every row query ends with ORDER BY over the requested keys and
// then the primary key, so results are deterministic.
// CRITICAL: values are always bound as ? parameters, never interpolated.
type SQLCompiler struct {
	Resolver Resolver
}

// NewSQLCompiler creates a compiler that evaluates plan values with res.
func NewSQLCompiler(res Resolver) *SQLCompiler {
	return &SQLCompiler{Resolver: res}
}

// Compile converts a decoded plan over table to SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(r queryir.Retrieve, table *metadata.Table) (string, []any, error) {
	if table == nil {
		return "", nil, fmt.Errorf("cannot compile %s plan without table metadata", r.Shape)
	}
	if r.TableName() != table.Name {
		return "", nil, fmt.Errorf("plan reads %q, metadata describes %q", r.TableName(), table.Name)
	}
	if table.PrimaryKey == "" {
		return "", nil, fmt.Errorf("table %q has no primary key to order by", table.Name)
	}

	switch r.Shape {
	case queryir.ShapeSingle, queryir.ShapeMany:
		return c.compileRows(r, table)
	case queryir.ShapeByKey:
		return c.compileByKey(r, table)
	case queryir.ShapeAggregate:
		return c.compileAggregate(r, table)
	default:
		return "", nil, fmt.Errorf("unsupported plan shape: %s", r.Shape)
	}
}

// compileRows compiles single and many plans:
// SELECT cols FROM t [WHERE p] ORDER BY keys, pk LIMIT ?.
func (c *SQLCompiler) compileRows(r queryir.Retrieve, table *metadata.Table) (string, []any, error) {
	cols, err := selectList(r.Columns, table)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var params []any
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, Quote(table.Name))

	where, whereParams, err := c.where(r.Filter, table)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)
	params = append(params, whereParams...)

	order, err := stableOrderKey(r.OrderBy, table)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	limit, err := c.limit(r)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" LIMIT ?")
	params = append(params, limit)

	return sb.String(), params, nil
}

// compileByKey compiles SELECT cols FROM t WHERE pk = ? LIMIT 1.
func (c *SQLCompiler) compileByKey(r queryir.Retrieve, table *metadata.Table) (string, []any, error) {
	cols, err := selectList(r.Columns, table)
	if err != nil {
		return "", nil, err
	}
	key, err := c.Resolver.Scalar(r.Key)
	if err != nil {
		return "", nil, fmt.Errorf("resolve key: %w", err)
	}
	param, err := Param(key)
	if err != nil {
		return "", nil, fmt.Errorf("convert key: %w", err)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", cols, Quote(table.Name), Quote(table.PrimaryKey))
	return sql, []any{param}, nil
}

// compileAggregate compiles a count. With an explicit row limit the count
// runs over the limited, ordered subquery.
func (c *SQLCompiler) compileAggregate(r queryir.Retrieve, table *metadata.Table) (string, []any, error) {
	if r.Aggregate != queryir.AggregateCount {
		return "", nil, fmt.Errorf("unsupported aggregate %q", string(r.Aggregate))
	}
	where, params, err := c.where(r.Filter, table)
	if err != nil {
		return "", nil, err
	}
	if r.Top == nil {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", Quote(table.Name), where), params, nil
	}

	order, err := stableOrderKey(r.OrderBy, table)
	if err != nil {
		return "", nil, err
	}
	limit, err := c.limit(r)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s%s ORDER BY %s LIMIT ?)", Quote(table.Name), where, order)
	return sql, append(params, limit), nil
}

// limit returns the row limit parameter: the explicit limit when the plan
// has one, else the row ceiling. Negative limits select nothing.
func (c *SQLCompiler) limit(r queryir.Retrieve) (int64, error) {
	if r.Top == nil {
		return int64(r.Ceiling), nil
	}
	v, err := c.Resolver.Scalar(r.Top)
	if err != nil {
		return 0, fmt.Errorf("resolve row limit: %w", err)
	}
	var n int64
	switch val := v.(type) {
	case ir.Int:
		n = int64(val)
	case ir.Decimal:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0, fmt.Errorf("row limit: %w", err)
		}
		n = int64(f)
	case ir.Null:
		n = 0
	default:
		return 0, fmt.Errorf("row limit must be a number, got %s", val.Kind())
	}
	return max(n, 0), nil
}

func (c *SQLCompiler) where(p queryir.Predicate, table *metadata.Table) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(p, table)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + sql, params, nil
}

// compilePredicate compiles a remote predicate to a WHERE fragment.
// CRITICAL: values NEVER interpolated, always ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, table *metadata.Table) (string, []any, error) {
	switch pred := p.(type) {
	case *queryir.Compare:
		return c.compileCompare(pred, table)
	case *queryir.StartsWith:
		return c.compileLike(pred.Field, pred.Prefix, table, func(s string) string { return escapeLike(s) + "%" })
	case *queryir.EndsWith:
		return c.compileLike(pred.Field, pred.Suffix, table, func(s string) string { return "%" + escapeLike(s) })
	case *queryir.In:
		return c.compileIn(pred, table)
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", table)
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", table)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

var compareSQL = map[queryir.CompareOp]string{
	queryir.Eq:  "=",
	queryir.Neq: "<>",
	queryir.Lt:  "<",
	queryir.Lte: "<=",
	queryir.Gt:  ">",
	queryir.Gte: ">=",
}

// compileCompare compiles "field op ?". Comparisons with blank use IS / IS
// NOT, and a non-blank inequality also matches blank columns, so that
// blank compares as it does locally.
func (c *SQLCompiler) compileCompare(cmp *queryir.Compare, table *metadata.Table) (string, []any, error) {
	col, err := column(cmp.Field, table)
	if err != nil {
		return "", nil, err
	}
	v, err := c.Resolver.Scalar(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("resolve %s: %w", cmp, err)
	}
	param, err := Param(v)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	op := compareSQL[cmp.Op]
	switch {
	case param == nil && cmp.Op == queryir.Eq:
		op = "IS"
	case param == nil && cmp.Op == queryir.Neq:
		op = "IS NOT"
	case cmp.Op == queryir.Neq:
		return fmt.Sprintf("(%s <> ? OR %s IS NULL)", col, col), []any{param}, nil
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{param}, nil
}

func (c *SQLCompiler) compileLike(field string, value ir.Node, table *metadata.Table, pattern func(string) string) (string, []any, error) {
	col, err := column(field, table)
	if err != nil {
		return "", nil, err
	}
	v, err := c.Resolver.Scalar(value)
	if err != nil {
		return "", nil, fmt.Errorf("resolve pattern: %w", err)
	}
	s, ok := v.(ir.String)
	if !ok {
		return "", nil, fmt.Errorf("pattern on %q must be text, got %s", field, v.Kind())
	}
	return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col), []any{pattern(string(s))}, nil
}

// compileIn compiles "field IN (?, ...)". An empty set matches nothing.
func (c *SQLCompiler) compileIn(in *queryir.In, table *metadata.Table) (string, []any, error) {
	col, err := column(in.Field, table)
	if err != nil {
		return "", nil, err
	}
	vals, err := c.Resolver.List(in.Set)
	if err != nil {
		return "", nil, fmt.Errorf("resolve set: %w", err)
	}
	if len(vals) == 0 {
		return "0 = 1", nil, nil
	}
	params := make([]any, len(vals))
	for i, v := range vals {
		p, err := Param(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert set value: %w", err)
		}
		params[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
	return fmt.Sprintf("%s IN (%s)", col, placeholders), params, nil
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep string, table *metadata.Table) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, fmt.Errorf("empty%scombination", sep)
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p, table)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// stableOrderKey returns the ORDER BY list: the requested keys, then the
// primary key as tiebreaker unless already sorted on.
// COLLATE BINARY keeps text ordering independent of the SQLite build.
func stableOrderKey(order queryir.OrderBy, table *metadata.Table) (string, error) {
	parts := make([]string, 0, len(order)+1)
	sawKey := false
	for _, k := range order {
		col, err := column(k.Field, table)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s COLLATE BINARY %s", col, dir))
		sawKey = sawKey || k.Field == table.PrimaryKey
	}
	if !sawKey {
		parts = append(parts, Quote(table.PrimaryKey)+" COLLATE BINARY ASC")
	}
	return strings.Join(parts, ", "), nil
}

// selectList returns the quoted projection, every stored column in
// declaration order when cols is empty.
func selectList(cols queryir.ColumnMap, table *metadata.Table) (string, error) {
	names := []string(cols)
	if len(names) == 0 {
		for _, col := range table.Columns {
			names = append(names, col.Name)
		}
	}
	parts := make([]string, len(names))
	for i, n := range names {
		q, err := column(n, table)
		if err != nil {
			return "", err
		}
		parts[i] = q
	}
	return strings.Join(parts, ", "), nil
}

// column validates name against the table and returns it quoted. Column
// names come from metadata, not user input, but are still checked so a
// malformed plan cannot produce arbitrary SQL.
func column(name string, table *metadata.Table) (string, error) {
	if _, ok := table.FieldType(name); !ok {
		return "", fmt.Errorf("table %q has no column %q", table.Name, name)
	}
	return Quote(name), nil
}

// Quote returns ident as a double-quoted SQLite identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Param converts a literal value to a SQL parameter.
func Param(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Decimal:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("decimal %q: %w", string(val), err)
		}
		return f, nil
	case ir.Bool:
		return bool(val), nil
	case ir.Guid:
		return val.String(), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
