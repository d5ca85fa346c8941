package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestScenario(t *testing.T, body string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte("name: inline\ndescription: \"inline scenario\"\n" + contactsTable + body))
	require.NoError(t, err)
	return s
}

func TestRun_DelegatedFilter(t *testing.T) {
	scenario := parseTestScenario(t, `
formula:
  call: Filter
  args:
    - table: Contacts
    - gt: [{col: age}, 40]
expect:
  plan: '__retrieveMultiple(Contacts, age > 40, _, _, _, ceiling 500, _)'
  diagnostics: []
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Fingerprint)
	require.Len(t, result.Queries, 1)
	assert.Equal(t, []string{"40", "500"}, result.Queries[0].Params)
	assert.Contains(t, result.Value, `fullname: "Grace"`)
	assert.NotContains(t, result.Value, `fullname: "Ada"`)
}

func TestRun_MaxRowsOption(t *testing.T) {
	scenario := parseTestScenario(t, `
options:
  max_rows: 1
formula:
  call: Filter
  args:
    - table: Contacts
    - gt: [{col: age}, 0]
expect:
  plan: '__retrieveMultiple(Contacts, age > 0, _, _, _, ceiling 1, _)'
  diagnostics: []
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	// The ceiling truncates the delegated result, so it no longer agrees
	// with the local evaluation.
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "delegated result differs from local evaluation")
	assert.Equal(t, []string{"0", "1"}, result.Queries[0].Params)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := parseTestScenario(t, `
formula:
  call: CountRows
  args: [{table: Contacts}]
expect:
  plan: 'CountRows(Contacts)'
  diagnostics: [NotSupportedForDelegation]
  result: '3'
`)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, "2", result.Value)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: plan")
	assert.Contains(t, result.Errors[1], "Assertion failed: diagnostics")
	assert.Contains(t, result.Errors[2], "Assertion failed: result")
}

func TestRun_DecodeError(t *testing.T) {
	scenario := parseTestScenario(t, `
formula: {table: Leads}
`)

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "Leads"`)
}

func TestRun_BadRow(t *testing.T) {
	scenario := parseTestScenario(t, "formula: {table: Contacts}\n")
	scenario.Tables[0].Rows = append(scenario.Tables[0].Rows, map[string]any{"salary": 10})

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "salary"`)
}

func TestRunAll(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	results, err := RunAll(context.Background(), scenarios)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))

	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.Name)
		assert.True(t, r.Pass, "%s: %v", r.Name, r.Errors)
	}
}

func TestRunAll_StopsOnError(t *testing.T) {
	good := parseTestScenario(t, "formula: {table: Contacts}\n")
	bad := parseTestScenario(t, "formula: {var: Missing}\n")

	_, err := RunAll(context.Background(), []*Scenario{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "inline"`)
}
