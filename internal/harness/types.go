package harness

import "github.com/roach88/delegate/internal/diag"

// Result is the outcome of running one scenario.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when the delegated and local evaluations agree and every
	// expectation holds.
	Pass bool `json:"pass"`

	// Plan is the ir.Format of the rewritten tree.
	Plan string `json:"plan"`

	// Fingerprint is the content-addressed id of the rewritten tree.
	Fingerprint string `json:"fingerprint"`

	// Diagnostics are the planner's findings in report order.
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`

	// Value is the rendered result of evaluating the rewritten tree.
	Value string `json:"value"`

	// Queries are the SQL statements the rewritten tree ran, in order.
	Queries []Query `json:"queries"`

	// Notifications are the messages passed to Notify, in order.
	Notifications []string `json:"notifications,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:    name,
		Pass:    true,
		Queries: []Query{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// DiagnosticKeys returns the keys of the diagnostics in report order.
func (r *Result) DiagnosticKeys() []string {
	keys := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		keys[i] = string(d.Key)
	}
	return keys
}
