package testutil

import (
	"sync"

	"github.com/roach88/delegate/internal/ir"
)

// SpanClock hands out deterministic, non-overlapping source spans and row
// scope ids for hand-built trees.
//
// The same sequence of builder calls always produces the same spans, so
// diagnostics in golden files stay stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SpanClock struct {
	mu    sync.Mutex
	seq   int
	scope ir.ScopeID
}

// NewSpanClock creates a clock whose first span is 0:1.
func NewSpanClock() *SpanClock {
	return &SpanClock{}
}

// NextSpan returns the next span. Span n covers [n*10, n*10+1).
func (c *SpanClock) NextSpan() ir.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := ir.Span{Start: c.seq * 10, End: c.seq*10 + 1}
	c.seq++
	return s
}

// NextScope returns a fresh row scope id. The first call returns 1.
func (c *SpanClock) NextScope() ir.ScopeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope++
	return c.scope
}

// Reset restarts both sequences.
func (c *SpanClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
	c.scope = 0
}
