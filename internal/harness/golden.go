package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/delegate/internal/ir"
)

// Snapshot is the golden form of a result: the rewritten tree, diagnostics,
// executed SQL and rendered value. The fingerprint is left out; the plan
// text already pins the tree.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to plain data for canonical JSON.
func (s *Snapshot) toCanonicalMap() map[string]any {
	diags := make([]any, len(s.Result.Diagnostics))
	for i, d := range s.Result.Diagnostics {
		diags[i] = map[string]any{
			"key":     string(d.Key),
			"message": d.Message(),
		}
	}
	queries := make([]any, len(s.Result.Queries))
	for i, q := range s.Result.Queries {
		queries[i] = map[string]any{
			"sql":    q.SQL,
			"params": q.Params,
		}
	}
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"plan":          s.Result.Plan,
		"diagnostics":   diags,
		"queries":       queries,
		"value":         s.Result.Value,
	}
	if len(s.Result.Notifications) > 0 {
		out["notifications"] = s.Result.Notifications
	}
	return out
}

// MarshalSnapshot encodes the snapshot as canonical JSON.
func (s *Snapshot) MarshalSnapshot() ([]byte, error) {
	return ir.MarshalCanonicalData(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	data, err := snapshot.MarshalSnapshot()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
