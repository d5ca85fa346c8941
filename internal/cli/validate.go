package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/delegate/internal/schema"
)

// ValidateResult is the output of a successful validation.
type ValidateResult struct {
	Valid  bool           `json:"valid"`
	Tables []TableSummary `json:"tables"`
}

// TableSummary describes one validated table.
type TableSummary struct {
	Name         string `json:"name"`
	PrimaryKey   string `json:"primary_key"`
	Capabilities string `json:"capabilities"`
	Columns      int    `json:"columns"`
}

// RenderText implements TextRenderer.
func (r *ValidateResult) RenderText(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "✓ %d table(s) valid\n", len(r.Tables))
	if !verbose {
		return
	}
	for _, t := range r.Tables {
		fmt.Fprintf(w, "  %s (key %s, %d columns): %s\n", t.Name, t.PrimaryKey, t.Columns, t.Capabilities)
	}
}

// ValidationErrorOutput is one load or validation error.
type ValidationErrorOutput struct {
	Code    string `json:"code"`
	Table   string `json:"table,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationErrors is the error detail of a failed validation.
type ValidationErrors []ValidationErrorOutput

// RenderText implements TextRenderer.
func (errs ValidationErrors) RenderText(w io.Writer, verbose bool) {
	for _, e := range errs {
		loc := e.Field
		if e.Table != "" {
			loc = e.Table + "." + e.Field
		}
		if e.Line > 0 {
			loc = strings.TrimSuffix(fmt.Sprintf("line %d: %s", e.Line, loc), ": ")
		}
		if loc != "" {
			fmt.Fprintf(w, "  [%s] %s: %s\n", e.Code, loc, e.Message)
			continue
		}
		fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [schema-dir]",
		Short: "Validate CUE table metadata",
		Long: `Load every table defined in a CUE schema directory and check its
metadata: columns, primary key and capabilities.

Without an argument the directory comes from schema.dir in the config.

Exit codes:
  0 - All tables valid
  1 - One or more tables invalid
  2 - Command error (missing directory, no CUE files, etc.)

Examples:
  delegate validate ./schema
  delegate validate ./schema --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else if rootOpts.Config != nil {
				dir = rootOpts.Config.Schema.Dir
			}
			if dir == "" {
				return NewExitError(ExitCommandError, "no schema directory: pass one or set schema.dir")
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, loadErrors := schema.LoadDir(dir, schema.LoadModeCollectAll)

	// Directory-level failures leave nothing to validate.
	if result == nil {
		var loadErr *schema.LoadError
		code := schema.ErrCodeGeneric
		if errors.As(loadErrors[0], &loadErr) {
			code = loadErr.Code
		}
		formatter.Error(code, loadErrors[0].Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load schema", loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	if len(loadErrors) > 0 {
		details := make(ValidationErrors, len(loadErrors))
		for i, err := range loadErrors {
			details[i] = toValidationOutput(err)
		}
		formatter.Error(details[0].Code, fmt.Sprintf("%d validation error(s)", len(details)), details)
		return NewExitError(ExitFailure, "validation failed")
	}

	out := &ValidateResult{Valid: true, Tables: make([]TableSummary, len(result.Tables))}
	for i, t := range result.Tables {
		out.Tables[i] = TableSummary{
			Name:         t.Name,
			PrimaryKey:   t.PrimaryKey,
			Capabilities: t.Capabilities.String(),
			Columns:      len(t.Columns),
		}
	}
	return formatter.Success(out)
}

func toValidationOutput(err error) ValidationErrorOutput {
	var verr schema.ValidationError
	if errors.As(err, &verr) {
		return ValidationErrorOutput{Code: verr.Code, Table: verr.Table, Field: verr.Field, Message: verr.Message}
	}
	var loadErr *schema.LoadError
	if errors.As(err, &loadErr) {
		out := ValidationErrorOutput{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			out.Line = loadErr.Pos.Line()
		}
		return out
	}
	return ValidationErrorOutput{Code: schema.ErrCodeGeneric, Message: err.Error()}
}
