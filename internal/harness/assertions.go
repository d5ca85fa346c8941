package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Expectation that failed: plan, diagnostics, result, queries
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Plan     string // Rewritten tree for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Plan != "" {
		fmt.Fprintf(&buf, "\nRewritten tree:\n  %s\n", e.Plan)
	}

	return buf.String()
}

func assertPlan(result *Result, want string) error {
	if want == "" || result.Plan == want {
		return nil
	}
	return &AssertionError{Type: "plan", Expected: want, Actual: result.Plan}
}

// assertDiagnostics checks the diagnostic keys in report order. An empty
// expectation requires that nothing was reported.
func assertDiagnostics(result *Result, want []string) error {
	got := result.DiagnosticKeys()
	if slices.Equal(got, want) || (len(got) == 0 && len(want) == 0) {
		return nil
	}
	actual := make([]string, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		actual[i] = d.String()
	}
	return &AssertionError{
		Type:     "diagnostics",
		Expected: formatList(want),
		Actual:   formatList(actual),
		Plan:     result.Plan,
	}
}

func assertResult(result *Result, want string) error {
	if want == "" || result.Value == want {
		return nil
	}
	return &AssertionError{Type: "result", Expected: want, Actual: result.Value, Plan: result.Plan}
}

func assertQueries(result *Result, want []string) error {
	if len(want) == 0 {
		return nil
	}
	got := make([]string, len(result.Queries))
	for i, q := range result.Queries {
		got[i] = q.SQL
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     "queries",
		Expected: formatList(want),
		Actual:   formatList(got),
		Plan:     result.Plan,
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(items, "; ") + "]"
}

// EvaluateExpectations checks every expectation against the result.
// Returns a slice of error messages for failed expectations.
func EvaluateExpectations(result *Result, expect Expectations) []string {
	var errors []string
	for _, err := range []error{
		assertPlan(result, expect.Plan),
		assertDiagnostics(result, expect.Diagnostics),
		assertResult(result, expect.Result),
		assertQueries(result, expect.Queries),
	} {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
