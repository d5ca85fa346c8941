// Package diag defines the non-fatal diagnostics reported by the delegation
// pass. A diagnostic never stops compilation: it explains why part of a
// formula is evaluated locally instead of at the data source.
package diag

import (
	"fmt"
	"strings"

	"github.com/roach88/delegate/internal/ir"
)

// Severity grades a diagnostic. Every delegation diagnostic is a warning;
// Info is used by callers that surface informational notes.
type Severity uint8

const (
	Warning Severity = iota
	Info
)

func (s Severity) String() string {
	if s == Info {
		return "info"
	}
	return "warning"
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Key identifies the message template of a diagnostic.
type Key string

const (
	// NotSupportedForDelegation: a table/function combination is evaluated
	// locally. Args: subject, table, row ceiling.
	NotSupportedForDelegation Key = "NotSupportedForDelegation"

	// BehaviorFunctionReferenced: a predicate value calls a side-effecting
	// function. Args: function name.
	BehaviorFunctionReferenced Key = "BehaviorFunctionReferenced"

	// CurrentRowReferenced: a predicate value or key reads the row being
	// filtered. Args: field name.
	CurrentRowReferenced Key = "CurrentRowReferenced"

	// RedundantPredicate: a field is compared with itself. Args: field name.
	RedundantPredicate Key = "RedundantPredicate"
)

var templates = map[Key]string{
	NotSupportedForDelegation:  "%s over table %q cannot be delegated; only the first %s rows are retrieved and evaluated locally",
	BehaviorFunctionReferenced: "the predicate calls behavior function %s and cannot be delegated",
	CurrentRowReferenced:       "the value compared with %s depends on the row being filtered and cannot be delegated",
	RedundantPredicate:         "%s is compared with itself; the predicate is likely a mistake",
}

// Diagnostic is one non-fatal finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Key      Key      `json:"key"`
	Args     []string `json:"args,omitempty"`
	Span     ir.Span  `json:"span"`
}

// Message renders the key's template with the diagnostic's arguments.
func (d Diagnostic) Message() string {
	tmpl, ok := templates[d.Key]
	if !ok {
		return fmt.Sprintf("%s %s", d.Key, strings.Join(d.Args, ", "))
	}
	args := make([]any, len(d.Args))
	for i, a := range d.Args {
		args[i] = a
	}
	return fmt.Sprintf(tmpl, args...)
}

// String formats the diagnostic as "warning[Key] start:end: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s] %s: %s", d.Severity, d.Key, d.Span, d.Message())
}

func (d Diagnostic) identity() string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s", d.Key, d.Span.Start, d.Span.End, strings.Join(d.Args, "\x00"))
}

// Bag is an ordered, de-duplicated collection of diagnostics. Two
// diagnostics with the same key, span and arguments are reported once.
// A Bag belongs to a single compilation and is not safe for concurrent use.
type Bag struct {
	items []Diagnostic
	seen  map[string]struct{}
}

// Add appends d unless an identical diagnostic was already reported.
// It returns whether d was added.
func (b *Bag) Add(d Diagnostic) bool {
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	id := d.identity()
	if _, dup := b.seen[id]; dup {
		return false
	}
	b.seen[id] = struct{}{}
	b.items = append(b.items, d)
	return true
}

// Warn adds a warning for key at span.
func (b *Bag) Warn(key Key, span ir.Span, args ...string) bool {
	return b.Add(Diagnostic{Severity: Warning, Key: key, Args: args, Span: span})
}

// Len returns the number of distinct diagnostics.
func (b *Bag) Len() int {
	return len(b.items)
}

// Items returns the diagnostics in report order. The returned slice is a
// copy and may be retained by the caller.
func (b *Bag) Items() []Diagnostic {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}
