package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/delegate/internal/config"
	"github.com/roach88/delegate/internal/delegation"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	Format       string // "json" | "text"
	ConfigPath   string
	MaxRows      int
	NoDelegation bool

	// Config and Logger are set before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the delegate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "delegate - push formula work down to remote tables",
		Long: `Rewrites bound formula trees so that filtering, sorting, row limits,
projections and counts run at the remote table instead of locally, and
reports every place where delegation had to fall back.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")
	cmd.PersistentFlags().IntVar(&opts.MaxRows, "max-rows", delegation.DefaultMaxRows, "row ceiling for delegated queries")
	cmd.PersistentFlags().BoolVar(&opts.NoDelegation, "no-delegation", false, "disable the rewrite and only report diagnostics")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load reads the configuration and builds the logger. Logs go to stderr so
// they never corrupt JSON output.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.Config = cfg
	o.Logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// delegationOptions returns the configured options, or the defaults when
// the command runs without the root command (as in tests).
func (o *RootOptions) delegationOptions() delegation.Options {
	if o.Config == nil {
		return delegation.Options{Disabled: o.NoDelegation, MaxRows: o.MaxRows, Logger: o.logger()}
	}
	return o.Config.Options(o.logger())
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
