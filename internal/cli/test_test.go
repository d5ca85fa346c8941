package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func runTestCommand(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, &RootOptions{Format: "text"}, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, &RootOptions{Format: "json"}, t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := runTestCommand(t, &RootOptions{Format: "text"}, harnessScenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ first_filter")
	assert.Contains(t, out, "✓ count_without_capability")
	assert.Contains(t, out, "Test Summary: 10 passed, 0 failed, 10 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCommand(t, &RootOptions{Format: "json"}, harnessScenariosDir, "--filter", "count_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	for _, s := range resp.Data.Scenarios {
		assert.True(t, strings.HasPrefix(s.Name, "count_"), s.Name)
		assert.NotEmpty(t, s.Plan)
	}
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first_filter.yaml", strings.Replace(accountsScenario,
		"plan: '__retrieveSingle(Accounts, revenue > 1000, _, _, _, 1, _)'",
		"plan: 'First(Filter(Accounts, revenue > 1000))'", 1))
	writeFile(t, dir, "count.yaml", countScenario)

	out, err := runTestCommand(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ count_without_capability")
	assert.Contains(t, out, "✗ first_filter")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
	assert.NotContains(t, out, "All scenarios passed")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := runTestCommand(t, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "1 scenario(s) failed")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first_filter.yaml", accountsScenario)

	_, err := runTestCommand(t, &RootOptions{Format: "text"}, dir, "--update")
	require.NoError(t, err)

	goldenPath := filepath.Join(dir, "golden", "first_filter.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"first_filter"`)

	out, err := runTestCommand(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ first_filter")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{}`), 0644))
	out, err = runTestCommand(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, &RootOptions{Format: "text"}, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "conformance")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "test1.yaml", "")
	writeFile(t, tmpDir, "test2.yml", "")
	writeFile(t, tmpDir, "ignore.txt", "")
	writeFile(t, tmpDir, filepath.Join("subdir", "sub.yaml"), "")

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "count-rows.yaml", "")
	writeFile(t, tmpDir, "count-filter.yaml", "")
	writeFile(t, tmpDir, "first-filter.yaml", "")

	files, err := findScenarioFiles(tmpDir, "count-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "count-"), f)
	}

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
