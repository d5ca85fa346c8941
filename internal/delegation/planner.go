package delegation

import (
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/delegate/internal/diag"
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// Planner rewrites bound trees against one metadata provider. It holds no
// per-compilation state and is safe for concurrent use.
type Planner struct {
	provider metadata.Provider
	opts     Options
}

// New returns a Planner for provider.
func New(provider metadata.Provider, opts Options) *Planner {
	return &Planner{provider: provider, opts: opts.withDefaults()}
}

// Rewrite delegates every table operation of root it can and returns the
// rewritten tree with the diagnostics explaining what was not delegated.
//
// Untouched subtrees keep their identity; when nothing is delegated the
// returned tree is root itself. The only error is *ContractViolation.
func (p *Planner) Rewrite(root ir.Node) (out ir.Node, diags []diag.Diagnostic, err error) {
	pass := &pass{
		provider: p.provider,
		maxRows:  p.opts.MaxRows,
		logger:   p.opts.Logger,
		bag:      &diag.Bag{},
	}
	defer recoverViolation(&err)

	pass.checkRedundant(root)
	if p.opts.Disabled {
		return root, pass.bag.Items(), nil
	}
	out = pass.Materialize(pass.Rewrite(root))
	return out, pass.bag.Items(), nil
}

// Rewrite is shorthand for New(provider, opts).Rewrite(root).
func Rewrite(root ir.Node, provider metadata.Provider, opts Options) (ir.Node, []diag.Diagnostic, error) {
	return New(provider, opts).Rewrite(root)
}

// pass is the state of one Rewrite call. It implements ir.Rewriter.
type pass struct {
	provider metadata.Provider
	maxRows  int
	logger   *slog.Logger
	bag      *diag.Bag
}

var _ ir.Rewriter[result] = (*pass)(nil)

// Rewrite implements ir.Rewriter.
func (p *pass) Rewrite(n ir.Node) result {
	switch v := n.(type) {
	case *ir.Ref:
		return p.rewriteRef(v)
	case *ir.Call:
		return p.rewriteCall(v)
	default:
		return plain(ir.Default[result](p, n))
	}
}

// Materialize implements ir.Rewriter: a pending candidate becomes its plan,
// or its original node when there is nothing to delegate.
func (p *pass) Materialize(r result) ir.Node {
	if !r.isDelegating() {
		return r.node
	}
	return p.materialize(r.cand)
}

func (p *pass) rewriteRef(ref *ir.Ref) result {
	if !ref.Type().IsTable() {
		return plain(ref)
	}
	meta, ok := p.provider.Table(ref.Symbol)
	if !ok {
		return plain(ref)
	}
	return delegating(newCandidate(ref, meta))
}

func (p *pass) rewriteCall(call *ir.Call) result {
	info := call.Func.Info()
	if info.Plan {
		// Already delegated.
		return plain(call)
	}
	if !info.TableArg || len(call.Args) == 0 || !call.Args[0].Type().IsTable() {
		return plain(ir.Default[result](p, call))
	}

	src := p.Rewrite(call.Args[0])
	if !src.isDelegating() {
		return plain(p.fallback(call, src.node))
	}
	if !call.Func.AcceptsArgs(len(call.Args)) {
		violate(ErrCodeArity, call.Span(), nil, "%s called with %d arguments", call.Func, len(call.Args))
	}

	cand := src.cand
	switch call.Func {
	case ir.FuncLookUp:
		return p.lookUp(call, cand)
	case ir.FuncFilter:
		return p.filter(call, cand)
	case ir.FuncFirst, ir.FuncFirstN:
		return p.first(call, cand)
	case ir.FuncCountRows:
		return p.countRows(call, cand)
	case ir.FuncSortByColumns:
		return p.sortByColumns(call, cand)
	case ir.FuncShowColumns:
		return p.showColumns(call, cand)
	}

	if info.Opaque {
		// A whole-table use: drop any pending state without a warning.
		return plain(p.fallback(call, cand.original))
	}
	return p.refuse(call, cand, "function not delegable")
}

// refuse reports NotSupportedForDelegation for call and evaluates it locally
// over the materialized candidate.
func (p *pass) refuse(call *ir.Call, cand candidate, reason string) result {
	p.warnNotSupported(call, cand)
	p.logger.Debug("delegation fallback", "func", call.Func.String(), "table", cand.tableName(), "reason", reason)
	return plain(p.fallback(call, p.materialize(cand)))
}

func (p *pass) warnNotSupported(call *ir.Call, cand candidate) {
	p.bag.Warn(diag.NotSupportedForDelegation, call.Span(), call.Func.String(), cand.tableName(), strconv.Itoa(p.maxRows))
}

// fallback rebuilds call with arg0 as its first argument and every other
// argument rewritten independently. call itself is returned when nothing
// changed.
func (p *pass) fallback(call *ir.Call, arg0 ir.Node) ir.Node {
	var args []ir.Node
	for i, a := range call.Args {
		m := arg0
		if i > 0 {
			m = p.Materialize(p.Rewrite(a))
		}
		if args == nil {
			if m == a {
				continue
			}
			args = make([]ir.Node, len(call.Args))
			copy(args, call.Args[:i])
		}
		args[i] = m
	}
	if args == nil {
		return call
	}
	return &ir.Call{Meta: call.Meta, Func: call.Func, Scope: call.Scope, Args: args}
}

func (p *pass) lookUp(call *ir.Call, cand candidate) result {
	if len(call.Args) != 2 {
		return p.refuse(call, cand, "LookUp with a result formula")
	}
	pred := ir.Unwrap(call.Args[1])

	if key, ok := p.primaryKeyValue(call, cand, pred); ok {
		if cand.hasState() {
			return p.refuse(call, cand, "key lookup over a filtered source")
		}
		if !cand.supports(queryir.CapFilter) {
			return p.refuse(call, cand, "filter capability missing")
		}
		return plain(p.materializeByKey(call, cand, key))
	}

	return p.extendFilter(call, cand, call.Args[1:])
}

func (p *pass) filter(call *ir.Call, cand candidate) result {
	return p.extendFilter(call, cand, call.Args[1:])
}

// extendFilter translates preds in call's row scope and ANDs them into the
// candidate. Every predicate must translate or the call falls back whole.
func (p *pass) extendFilter(call *ir.Call, cand candidate, preds []ir.Node) result {
	if cand.top != nil {
		return p.refuse(call, cand, "filter after row limit")
	}
	if !cand.supports(queryir.CapFilter) {
		return p.refuse(call, cand, "filter capability missing")
	}

	t := &translator{pass: p, scope: call.Scope, cand: cand}
	var combined queryir.Predicate
	ok := true
	for _, pred := range preds {
		frag, delegated := t.translate(pred)
		if !delegated {
			ok = false
			continue
		}
		combined = queryir.Conjoin(combined, frag)
	}
	if !ok {
		if t.reported {
			p.logger.Debug("delegation fallback", "func", call.Func.String(), "table", cand.tableName(), "reason", "predicate")
			return plain(p.fallback(call, p.materialize(cand)))
		}
		return p.refuse(call, cand, "predicate not delegable")
	}
	return delegating(cand.withFilter(combined).withOriginal(call))
}

func (p *pass) first(call *ir.Call, cand candidate) result {
	if !cand.supports(queryir.CapTop) {
		return p.refuse(call, cand, "top capability missing")
	}

	var n ir.Node = &ir.Literal{Meta: ir.Meta{T: ir.Scalar(ir.KindNumber), At: call.Span()}, Value: ir.Int(1)}
	if len(call.Args) == 2 {
		n = p.Materialize(p.Rewrite(call.Args[1]))
	}
	if cand.top != nil {
		smaller, ok := minLimit(cand.top, n)
		if !ok {
			return p.refuse(call, cand, "nested row limits")
		}
		n = smaller
	}
	return delegating(cand.withTop(n).withOriginal(call))
}

// minLimit returns the tighter of two literal row limits.
func minLimit(a, b ir.Node) (ir.Node, bool) {
	x, ok := literalInt(a)
	if !ok {
		return nil, false
	}
	y, ok := literalInt(b)
	if !ok {
		return nil, false
	}
	if y < x {
		return b, true
	}
	return a, true
}

func literalInt(n ir.Node) (int64, bool) {
	l, ok := ir.Unwrap(n).(*ir.Literal)
	if !ok {
		return 0, false
	}
	i, ok := l.Value.(ir.Int)
	return int64(i), ok
}

func (p *pass) countRows(call *ir.Call, cand candidate) result {
	if !call.Type().IsNumeric() || !cand.supports(queryir.CapCount) {
		return p.refuse(call, cand, "count capability missing")
	}
	return delegating(cand.withCount().withOriginal(call))
}

func (p *pass) sortByColumns(call *ir.Call, cand candidate) result {
	if cand.top != nil {
		return p.refuse(call, cand, "sort after row limit")
	}
	if !cand.supports(queryir.CapSort) {
		return p.refuse(call, cand, "sort capability missing")
	}
	// Arguments after the table are column, order pairs; the last order
	// may be omitted.
	var keys []queryir.SortKey
	for i := 1; i < len(call.Args); i += 2 {
		name, ok := literalString(call.Args[i])
		if !ok || !cand.hasColumn(name) {
			return p.refuse(call, cand, "sort column")
		}
		key := queryir.SortKey{Field: name}
		if i+1 < len(call.Args) {
			dir, ok := literalString(call.Args[i+1])
			switch {
			case ok && dir == "Descending":
				key.Descending = true
			case ok && dir == "Ascending":
			default:
				return p.refuse(call, cand, "sort order")
			}
		}
		keys = append(keys, key)
	}
	// The first key is the primary one, so fold from the last.
	for i := len(keys) - 1; i >= 0; i-- {
		cand = cand.withSortKey(keys[i])
	}
	return delegating(cand.withOriginal(call))
}

func (p *pass) showColumns(call *ir.Call, cand candidate) result {
	if !cand.supports(queryir.CapColumnProjection) {
		return p.refuse(call, cand, "projection capability missing")
	}
	cols := make(queryir.ColumnMap, 0, len(call.Args)-1)
	for _, a := range call.Args[1:] {
		name, ok := literalString(a)
		if !ok || !cand.hasColumn(name) {
			return p.refuse(call, cand, "projected column")
		}
		if slices.Contains(cols, name) {
			return p.refuse(call, cand, "column projected twice")
		}
		cols = append(cols, name)
	}
	return delegating(cand.withColumns(cols).withOriginal(call))
}

func literalString(n ir.Node) (string, bool) {
	l, ok := ir.Unwrap(n).(*ir.Literal)
	if !ok {
		return "", false
	}
	s, ok := l.Value.(ir.String)
	return string(s), ok
}
