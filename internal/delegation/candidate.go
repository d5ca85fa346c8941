package delegation

import (
	"slices"

	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/queryir"
)

// candidate is the query being accumulated for one table-rooted chain.
//
// Candidates are values: every with* method returns a modified copy and
// never touches the receiver or its slices, so a candidate can be reused
// after a failed extension.
type candidate struct {
	// original is the input node the candidate stands for. It is always a
	// correct replacement when delegation stops.
	original ir.Node

	// table is the source reference and meta its certified description.
	// A candidate without meta does not delegate.
	table *ir.Ref
	meta  *metadata.Table

	filter  queryir.Predicate
	top     ir.Node
	orderBy queryir.OrderBy
	columns queryir.ColumnMap
	count   bool
}

func newCandidate(ref *ir.Ref, meta *metadata.Table) candidate {
	return candidate{original: ref, table: ref, meta: meta}
}

func (c candidate) isDelegating() bool {
	return c.meta != nil
}

// hasState reports whether the candidate asks the source for anything
// beyond "all rows".
func (c candidate) hasState() bool {
	return c.filter != nil || c.top != nil || len(c.orderBy) > 0 || len(c.columns) > 0 || c.count
}

func (c candidate) tableName() string {
	return c.table.Symbol.Name
}

func (c candidate) supports(want queryir.Capability) bool {
	return c.meta.Capabilities.Has(want)
}

func (c candidate) withOriginal(n ir.Node) candidate {
	c.original = n
	return c
}

func (c candidate) withFilter(p queryir.Predicate) candidate {
	c.filter = queryir.Conjoin(c.filter, p)
	return c
}

func (c candidate) withTop(n ir.Node) candidate {
	c.top = n
	return c
}

// withSortKey makes k the primary sort key. An existing key on the same
// field is dropped, the others become tie-breakers in their current order.
func (c candidate) withSortKey(k queryir.SortKey) candidate {
	order := make(queryir.OrderBy, 0, len(c.orderBy)+1)
	order = append(order, k)
	for _, old := range c.orderBy {
		if old.Field != k.Field {
			order = append(order, old)
		}
	}
	c.orderBy = order
	return c
}

func (c candidate) withColumns(cols queryir.ColumnMap) candidate {
	c.columns = slices.Clone(cols)
	return c
}

func (c candidate) withCount() candidate {
	c.count = true
	return c
}

// hasColumn reports whether name is readable through the candidate: it must
// be a stored column and survive any projection.
func (c candidate) hasColumn(name string) bool {
	if _, ok := c.meta.FieldType(name); !ok {
		return false
	}
	return len(c.columns) == 0 || slices.Contains(c.columns, name)
}

// result is what the planner returns for every node: either a plain node or
// a delegating candidate.
type result struct {
	node ir.Node
	cand candidate
}

func plain(n ir.Node) result {
	return result{node: n}
}

func delegating(c candidate) result {
	return result{cand: c}
}

func (r result) isDelegating() bool {
	return r.cand.isDelegating()
}
