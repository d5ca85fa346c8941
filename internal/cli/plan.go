package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/delegate/internal/delegation"
	"github.com/roach88/delegate/internal/diag"
	"github.com/roach88/delegate/internal/harness"
	"github.com/roach88/delegate/internal/ir"
	"github.com/roach88/delegate/internal/queryir"
)

// Plan command error codes.
const (
	ErrCodeScenario = "E010" // scenario could not be loaded or decoded
	ErrCodeRewrite  = "E011" // the rewrite failed
)

// PlanResult is the output of the plan command.
type PlanResult struct {
	Scenario    string             `json:"scenario"`
	Input       string             `json:"input"`
	Plan        string             `json:"plan"`
	Fingerprint string             `json:"fingerprint"`
	Delegated   bool               `json:"delegated"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
}

// DiagnosticOutput is the rendered form of a diagnostic.
type DiagnosticOutput struct {
	Severity string  `json:"severity"`
	Key      string  `json:"key"`
	Message  string  `json:"message"`
	Span     ir.Span `json:"span"`
}

// RenderText implements TextRenderer.
func (r *PlanResult) RenderText(w io.Writer, verbose bool) {
	if verbose {
		fmt.Fprintf(w, "input:       %s\n", r.Input)
	}
	fmt.Fprintf(w, "plan:        %s\n", r.Plan)
	fmt.Fprintf(w, "fingerprint: %s\n", r.Fingerprint)
	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "no diagnostics")
		return
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "%s[%s] %s\n", d.Severity, d.Key, d.Message)
	}
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <scenario.yaml>",
		Short: "Rewrite a scenario's formula and print the plan",
		Long: `Rewrite the formula of a scenario file and print the rewritten tree,
its fingerprint and the diagnostics raised while delegating.

The scenario's own options override --max-rows and --no-delegation.

Exit codes:
  0 - Plan printed
  2 - Command error (unreadable scenario, invalid formula, etc.)

Examples:
  delegate plan ./scenarios/first_filter.yaml
  delegate plan ./scenarios/first_filter.yaml --format json
  delegate plan ./scenarios/first_filter.yaml --max-rows 100`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}
}

func runPlan(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	fx, err := harness.NewFixture(scenario, opts.logger())
	if err != nil {
		formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to decode scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s with %d table(s)", scenario.Name, len(fx.Tables))

	rewritten, diags, err := delegation.Rewrite(fx.Root, fx.Provider, planOptions(opts, scenario))
	if err != nil {
		formatter.Error(ErrCodeRewrite, err.Error(), nil)
		return WrapExitError(ExitCommandError, "rewrite failed", err)
	}
	fingerprint, err := ir.Fingerprint(rewritten)
	if err != nil {
		formatter.Error(ErrCodeRewrite, err.Error(), nil)
		return WrapExitError(ExitCommandError, "fingerprint failed", err)
	}

	return formatter.Success(&PlanResult{
		Scenario:    scenario.Name,
		Input:       ir.Format(fx.Root),
		Plan:        ir.Format(rewritten),
		Fingerprint: fingerprint,
		Delegated:   ir.Contains(rewritten, queryir.IsPlan),
		Diagnostics: diagnosticOutputs(diags),
	})
}

func planOptions(opts *RootOptions, scenario *harness.Scenario) delegation.Options {
	o := opts.delegationOptions()
	if scenario.Options.Disabled {
		o.Disabled = true
	}
	if scenario.Options.MaxRows > 0 {
		o.MaxRows = scenario.Options.MaxRows
	}
	return o
}

func diagnosticOutputs(diags []diag.Diagnostic) []DiagnosticOutput {
	out := make([]DiagnosticOutput, len(diags))
	for i, d := range diags {
		out[i] = DiagnosticOutput{
			Severity: d.Severity.String(),
			Key:      string(d.Key),
			Message:  d.Message(),
			Span:     d.Span,
		}
	}
	return out
}
