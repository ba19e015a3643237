package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vk/weave/internal/app"
	"github.com/vk/weave/internal/registry"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// options are the flags shared by every command.
type options struct {
	configFile string
	packages   string
	logLevel   string
	logFormat  string
	strict     bool
	limits     map[string]int64

	// modules replaces the built-in modules, for tests.
	modules []registry.Module
}

// NewRootCommand builds the command tree. Results go to the command's
// output stream; logs go to its error stream.
func NewRootCommand(modules ...registry.Module) *cobra.Command {
	opts := &options{modules: modules}

	root := &cobra.Command{
		Use:   "weave",
		Short: "Evaluate formulas and run component logic headlessly",
		Long: `weave loads packages of components and formula definitions and runs
their formulas, workflows and actions without a host page.

Examples:
  weave eval -e '{type: function, name: add, arguments: [{formula: {type: value, value: 1}}, {formula: {type: value, value: 2}}]}'
  weave run shop/Cart -p ./packages --workflow add --params '{amount: 5}'
  weave refs shop -p ./packages
  weave deps -p ./packages`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to a weave.hcl configuration file.")
	flags.StringVarP(&opts.packages, "packages", "p", "", "Path to a package file or a directory of .json/.yaml package files.")
	flags.StringVar(&opts.logLevel, "log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'.")
	flags.BoolVar(&opts.strict, "strict", false, "Fail on unresolved references and on soft failures.")
	flags.StringToInt64Var(&opts.limits, "limit", nil, "Override a ceiling, e.g. --limit formula.maxDepth=64.")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	root.AddCommand(
		newEvalCommand(opts),
		newRunCommand(opts),
		newRefsCommand(opts),
		newDepsCommand(opts),
	)
	return root
}

// Execute runs the command tree with args. Usage problems are returned as
// an *ExitError with code 2.
func Execute(args []string, stdout, stderr io.Writer, modules ...registry.Module) error {
	root := NewRootCommand(modules...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return err
}

// usage wraps a positional argument check so its failure exits with 2.
func usage(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		return nil
	}
}

// newApp builds the app from the configuration file and flags. Flags win
// over the file.
func (o *options) newApp(cmd *cobra.Command) (*app.App, error) {
	slog.Debug("Building application from flags.", "config", o.configFile)

	limits := make(map[string]map[string]int64)
	for key, v := range o.limits {
		category, name, ok := strings.Cut(key, ".")
		if !ok {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("invalid limit %q: expected category.name=value", key)}
		}
		if limits[category] == nil {
			limits[category] = make(map[string]int64)
		}
		limits[category][name] = v
	}

	cfg := app.Config{
		PackagesPath: o.packages,
		LogLevel:     strings.ToLower(o.logLevel),
		LogFormat:    strings.ToLower(o.logFormat),
		Strict:       o.strict,
		Limits:       limits,
	}
	if o.configFile != "" {
		file, err := app.LoadFile(o.configFile)
		if err != nil {
			return nil, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = file.Merge(cfg)
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return app.NewApp(cmd.ErrOrStderr(), config, o.modules...)
}

// softFailures reports the app's soft failures on the error stream and,
// in strict mode, turns them into an exit code.
func (o *options) softFailures(cmd *cobra.Command, a *app.App) error {
	errs := a.Errors()
	if len(errs) == 0 {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d soft failure(s) reported\n", len(errs))
	if o.strict {
		return &ExitError{Code: 1, Message: errors.Join(errs...).Error()}
	}
	return nil
}
