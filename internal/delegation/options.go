package delegation

import (
	"io"
	"log/slog"
)

// DefaultMaxRows is the row ceiling applied to delegated queries that do
// not ask for an explicit limit.
const DefaultMaxRows = 500

// Options configures a Planner. The zero value enables delegation with the
// default row ceiling.
type Options struct {
	// Disabled turns the rewrite off. The redundant-predicate check still
	// runs and the input tree is returned unchanged.
	Disabled bool

	// MaxRows is the row ceiling for row-set plans. Zero means DefaultMaxRows.
	MaxRows int

	// Logger receives Debug records for each delegation decision.
	// Nil discards them.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
