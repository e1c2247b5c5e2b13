// Package cli provides the command-line interface for anchors.
//
// The CLI is built with Cobra. [NewRootCommand] builds the single anchors
// command around an [App] holding its dependencies, which keeps the command
// testable: tests construct an App with a buffer-backed printer and drive the
// command with SetArgs.
//
// Exit codes are carried by [ExitError] rather than calling os.Exit inside
// commands; [Execute] performs the actual exit.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"anchors/internal/config"
	"anchors/internal/document"
	"anchors/internal/lifecycle"
	"anchors/internal/outdir"
	"anchors/internal/output"
)

// App holds the dependencies shared by the anchors command.
type App struct {
	// Config is the base configuration. Flags override it per run. When nil
	// it is loaded by [config.Loader.Load] unless --config names a file.
	Config *config.Config

	// Printer writes user-facing progress and result messages.
	Printer *output.Printer

	// Logger receives debug output. Nil selects a stderr logger whose
	// level follows the verbose setting.
	Logger *slog.Logger
}

// NewApp creates an [App] printing to stdout and stderr.
func NewApp(cfg *config.Config) *App {
	return &App{
		Config:  cfg,
		Printer: output.NewPrinter(),
	}
}

// rootFlags holds the values of the root command flags.
type rootFlags struct {
	modify     bool
	configPath string
	outputDir  string
	strict     bool
	nested     string
	verbose    bool
	noColor    bool
}

// NewRootCommand creates the anchors root command.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "anchors <templates-dir>",
		Short: "Expand $include directives in GitHub Actions workflow templates",
		Long: `anchors expands YAML templates into GitHub Actions workflows.

Each *.yaml file in the templates directory is a workflow. Any mapping of the
form {$include: <name>} is replaced by the block defined in
<templates-dir>/blocks/<name>.yaml.

By default anchors only checks that .github/workflows is up to date and
fails if any workflow is missing, outdated or unexpected. With --modify it
rewrites that directory instead.`,
		Example: `  anchors ci/templates
  anchors --modify ci/templates
  anchors --output-dir build/workflows ci/templates`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(app.Config, cmd, flags)
			if err != nil {
				app.Printer.Error(err)
				return NewExitError(1)
			}
			return runAnchors(cmd.Context(), app, cfg, args[0], flags.modify)
		},
	}

	cmd.Flags().BoolVarP(&flags.modify, "modify", "m", false,
		"write expanded workflows instead of checking that they are up to date")
	cmd.Flags().StringVar(&flags.configPath, "config", "",
		"config file (default: $ANCHORS_CONFIG_PATH or ./.anchors.yaml)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "",
		"directory receiving expanded workflows (default .github/workflows)")
	cmd.Flags().BoolVar(&flags.strict, "strict-includes", true,
		"reject mappings that mix $include with other keys")
	cmd.Flags().StringVar(&flags.nested, "nested-includes", "",
		`handling of $include inside blocks: "reject" or "expand"`)
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable styled output")

	return cmd
}

// resolveConfig returns the configuration for this run: the --config file
// when given, otherwise base, otherwise the default config lookup, with flag
// overrides applied. base itself is not modified.
func resolveConfig(base *config.Config, cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case flags.configPath != "":
		loaded, err := config.NewLoader().LoadFromFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case base != nil:
		copied := *base
		cfg = &copied
	default:
		loaded, err := config.NewLoader().Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if fs.Changed("strict-includes") {
		cfg.Includes.Strict = flags.strict
	}
	if fs.Changed("nested-includes") {
		cfg.Includes.Nested = flags.nested
	}
	if fs.Changed("verbose") {
		cfg.Output.Verbose = flags.verbose
	}
	if flags.noColor {
		cfg.Output.Color = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnchors(ctx context.Context, app *App, cfg *config.Config, templatesDir string, modify bool) error {
	logger := app.Logger
	if logger == nil {
		logger = config.NewLogger(cfg.Output.Verbose)
	}
	ctx = config.WithLogger(ctx, logger)

	app.Printer.SetColor(cfg.Output.Color)

	target := outdir.New(cfg.OutputDir, cfg.Extension)
	executor := lifecycle.NewExecutor(
		document.NewLoader(cfg.BlocksDir, cfg.Extension),
		target,
		cfg.ExpandOptions()...,
	)
	executor.SetLogger(config.GetLogger(ctx))
	executor.SetProgressCallback(func(stage lifecycle.Stage, name string) {
		switch stage {
		case lifecycle.StageExpand:
			app.Printer.Expanding(name)
		case lifecycle.StageEmit:
			app.Printer.Emitting(name)
		}
	})

	mode := lifecycle.ModeCheck
	if modify {
		mode = lifecycle.ModeModify
	}

	result, err := executor.Execute(ctx, templatesDir, mode)
	if err != nil {
		app.Printer.Error(err)
		return NewExitError(1)
	}

	if result.Mode == lifecycle.ModeModify {
		app.Printer.Emitted(target.Path(), len(result.Workflows))
	} else {
		app.Printer.UpToDate(target.Path(), len(result.Workflows))
	}
	return nil
}

// ExecuteResult holds the outcome of a command run.
type ExecuteResult struct {
	// ExitCode is the process exit code: 0 on success.
	ExitCode int

	// Err is the error that ended the run, if any.
	Err error
}

// RunWithConfig runs the root command with args against cfg, printing to
// stdout and stderr, and returns the result instead of exiting. A nil cfg
// selects the default config lookup.
func RunWithConfig(cfg *config.Config, args []string) ExecuteResult {
	return run(context.Background(), NewApp(cfg), args)
}

func run(ctx context.Context, app *App, args []string) ExecuteResult {
	cmd := NewRootCommand(app)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		// Argument and flag errors are not printed by cobra with
		// SilenceErrors set.
		app.Printer.Error(err)
		fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute runs the root command with the process arguments and exits with
// the resulting code. Configuration is loaded once flags are parsed, so
// --config replaces the default lookup entirely.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	result := run(ctx, NewApp(nil), os.Args[1:])
	stop()
	os.Exit(result.ExitCode)
}
