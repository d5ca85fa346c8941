package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/delegate/internal/delegation"
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/metadata"
	"github.com/roach88/delegate/internal/store"
)

// Fixture is a decoded scenario: its tables, variables and bound formula.
type Fixture struct {
	Scenario *Scenario
	Root     ir.Node
	Tables   []*metadata.Table
	Provider metadata.Provider

	vars map[string]any
}

// NewFixture decodes the tables, variables and formula of scenario. Table
// metadata is served through a metadata.Cache, the way a host would.
func NewFixture(scenario *Scenario, logger *slog.Logger) (*Fixture, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tables := make([]*metadata.Table, len(scenario.Tables))
	for i, def := range scenario.Tables {
		meta, err := def.Metadata()
		if err != nil {
			return nil, err
		}
		tables[i] = meta
	}

	vars := make(map[string]any, len(scenario.Variables))
	varTypes := make(map[string]ir.Type, len(scenario.Variables))
	for _, def := range scenario.Variables {
		v, t, err := def.value()
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", def.Name, err)
		}
		vars[def.Name] = v
		varTypes[def.Name] = t
	}

	root, err := DecodeFormula(&scenario.Formula, tables, varTypes)
	if err != nil {
		return nil, err
	}

	static := metadata.NewStatic(tables...)
	return &Fixture{
		Scenario: scenario,
		Root:     root,
		Tables:   tables,
		Provider: metadata.NewCache(static.Lookup, logger),
		vars:     vars,
	}, nil
}

// Options returns the scenario's delegation options.
func (f *Fixture) Options(logger *slog.Logger) delegation.Options {
	return delegation.Options{
		Disabled: f.Scenario.Options.Disabled,
		MaxRows:  f.Scenario.Options.MaxRows,
		Logger:   logger,
	}
}

// value converts the definition to a runtime value and its type.
func (v VariableDef) value() (any, ir.Type, error) {
	kind, err := ir.ParseKind(v.Type)
	if err != nil {
		return nil, ir.Type{}, err
	}
	if v.Values == nil {
		val, err := convertValue(kind, v.Value)
		return val, ir.Scalar(kind), err
	}
	cols := []string{"Value"}
	t := &Table{Columns: cols, Rows: make([]*Record, len(v.Values))}
	for i, raw := range v.Values {
		val, err := convertValue(kind, raw)
		if err != nil {
			return nil, ir.Type{}, fmt.Errorf("values[%d]: %w", i, err)
		}
		t.Rows[i] = &Record{Columns: cols, Fields: map[string]any{"Value": val}}
	}
	return t, ir.TableOf(ir.Field{Name: "Value", Type: ir.Scalar(kind)}), nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Decode the tables, variables and formula
// 2. Create the tables and load their rows
// 3. Rewrite the formula
// 4. Evaluate the original and the rewritten tree; results must agree
// 5. Check the expectations
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fx, err := NewFixture(scenario, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	byName := make(map[string]*metadata.Table, len(fx.Tables))
	for i, meta := range fx.Tables {
		byName[meta.Name] = meta
		if err := st.CreateTable(ctx, meta); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
		rows, err := scenario.Tables[i].StoreRows(meta)
		if err != nil {
			return nil, err
		}
		if err := st.Insert(ctx, meta.Name, rows); err != nil {
			return nil, fmt.Errorf("failed to load rows: %w", err)
		}
	}

	rewritten, diags, err := delegation.Rewrite(fx.Root, fx.Provider, fx.Options(logger))
	if err != nil {
		return nil, err
	}

	result := NewResult(scenario.Name)
	result.Plan = ir.Format(rewritten)
	result.Diagnostics = diags
	if result.Fingerprint, err = ir.Fingerprint(rewritten); err != nil {
		return nil, err
	}

	local := newEvaluator(ctx, st, byName, fx.vars)
	want, err := local.eval(fx.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate formula locally: %w", err)
	}

	delegated := newEvaluator(ctx, st, byName, fx.vars)
	got, err := delegated.eval(rewritten)
	if err != nil {
		result.AddError(fmt.Sprintf("delegated evaluation failed: %v", err))
		return result, nil
	}
	result.Value = Render(got)
	result.Queries = append(result.Queries, delegated.queries...)
	result.Notifications = delegated.notifications

	if w := Render(want); w != result.Value {
		result.AddError(fmt.Sprintf("delegated result differs from local evaluation:\n  local:     %s\n  delegated: %s", w, result.Value))
	}
	if !slices.Equal(local.notifications, delegated.notifications) {
		result.AddError(fmt.Sprintf("side effects differ: local %q, delegated %q", local.notifications, delegated.notifications))
	}

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	logger.Info("scenario completed", "scenario", scenario.Name, "pass", result.Pass, "queries", len(result.Queries))
	return result, nil
}

// RunAll runs scenarios concurrently and returns their results in input
// order. The first scenario that cannot run cancels the rest.
func RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", s.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
