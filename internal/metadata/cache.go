package metadata

import (
	"io"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/roach88/delegate/internal/ir"
)

// Loader resolves a table by name. It returns (nil, nil) when the name is
// not a remote table; errors are treated as transient.
type Loader func(name string) (*Table, error)

type cacheEntry struct {
	table *Table // nil for a name known not to be a remote table
}

// Cache is a lazily populated Provider in front of a Loader.
//
// Reads are lock-free: the cache holds an atomic pointer to an immutable
// map that is replaced by copy-on-write. A miss runs the loader outside any
// lock, then a short critical section decides whether to publish the result.
// When two compilations race on the same name the first writer wins and the
// others discard their result and return the published entry.
type Cache struct {
	load   Loader
	logger *slog.Logger

	snapshot atomic.Pointer[map[string]cacheEntry]

	// mu serializes publication (cold path only).
	mu sync.Mutex
}

// NewCache returns an empty cache over load. A nil logger discards output.
func NewCache(load Loader, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Cache{load: load, logger: logger}
	empty := make(map[string]cacheEntry)
	c.snapshot.Store(&empty)
	return c
}

// Table implements Provider.
func (c *Cache) Table(sym ir.Symbol) (*Table, bool) {
	if sym.Kind != ir.SymbolTable {
		return nil, false
	}

	// Fast path: existing entry, no locks.
	if e, ok := (*c.snapshot.Load())[sym.Name]; ok {
		return e.table, e.table != nil
	}

	t, err := c.load(sym.Name)
	if err != nil {
		c.logger.Warn("metadata lookup failed", "table", sym.Name, "error", err)
		return nil, false
	}

	e := c.publish(sym.Name, cacheEntry{table: t})
	return e.table, e.table != nil
}

// publish stores e under name unless another caller got there first, and
// returns the entry that is now in the cache.
func (c *Cache) publish(name string, e cacheEntry) cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.snapshot.Load()
	if existing, ok := (*current)[name]; ok {
		c.logger.Debug("metadata entry already published, discarding", "table", name)
		return existing
	}

	next := make(map[string]cacheEntry, len(*current)+1)
	maps.Copy(next, *current)
	next[name] = e
	c.snapshot.Store(&next)
	c.logger.Debug("metadata entry published", "table", name, "remote", e.table != nil, "entries", len(next))
	return e
}

// Len returns the number of cached names, including negative entries.
func (c *Cache) Len() int {
	return len(*c.snapshot.Load())
}
