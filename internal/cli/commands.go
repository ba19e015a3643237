package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vk/weave/internal/app"
	"github.com/vk/weave/internal/ast"
)

func newEvalCommand(opts *options) *cobra.Command {
	var expr, dataFlag string

	cmd := &cobra.Command{
		Use:   "eval [FORMULA_FILE]",
		Short: "Evaluate a formula and print the result as JSON",
		Long: `Evaluate a formula read from a .json/.yaml file, from standard input
when the file is "-", or from --expr. --data supplies the data root the
formula reads paths from.`,
		Args: usage(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw any
			var err error
			switch {
			case expr != "":
				raw, err = ast.ParseYAML([]byte(expr))
			case len(args) == 1:
				raw, err = readDocument(cmd.InOrStdin(), args[0])
			default:
				return &ExitError{Code: 2, Message: "eval needs a formula file or --expr"}
			}
			if err != nil {
				return err
			}
			f, err := ast.DecodeFormula(raw)
			if err != nil {
				return err
			}

			data, err := parseMapping(cmd.InOrStdin(), dataFlag)
			if err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), a.Evaluate(cmd.Context(), f, data)); err != nil {
				return err
			}
			return opts.softFailures(cmd, a)
		},
	}
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "Formula given inline as JSON or YAML.")
	cmd.Flags().StringVar(&dataFlag, "data", "", "Data root as inline JSON/YAML, or @path to read it from a file.")
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	var attrs, params, workflow string

	cmd := &cobra.Command{
		Use:   "run COMPONENT",
		Short: "Mount a component, optionally trigger a workflow, and print its state",
		Long: `Mount a component from the loaded packages, run its onLoad actions and,
with --workflow, one of its workflows. Prints the final variables together
with the events and URL parameters the run produced.`,
		Args: usage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			attributes, err := parseMapping(cmd.InOrStdin(), attrs)
			if err != nil {
				return fmt.Errorf("invalid --attrs: %w", err)
			}
			parameters, err := parseMapping(cmd.InOrStdin(), params)
			if err != nil {
				return fmt.Errorf("invalid --params: %w", err)
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			result, err := a.Run(cmd.Context(), app.RunRequest{
				Component:  args[0],
				Attributes: attributes,
				Workflow:   workflow,
				Parameters: parameters,
			})
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"variables": result.Variables,
				"events":    result.Events,
				"url":       result.URL,
			}); err != nil {
				return err
			}
			return opts.softFailures(cmd, a)
		},
	}
	cmd.Flags().StringVar(&attrs, "attrs", "", "Component attributes as inline JSON/YAML, or @path.")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow to trigger after onLoad.")
	cmd.Flags().StringVar(&params, "params", "", "Workflow parameters as inline JSON/YAML, or @path.")
	return cmd
}

func newRefsCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "refs [PACKAGE | PACKAGE/COMPONENT]",
		Short: "List the formula functions and custom actions referenced",
		Args:  usage(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			container, err := a.References(target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string][]string{
					"functions": container.Functions(),
					"actions":   container.CustomActions(),
				})
			}
			for _, name := range container.Functions() {
				fmt.Fprintf(out, "function %s\n", name)
			}
			for _, name := range container.CustomActions() {
				fmt.Fprintf(out, "action   %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text.")
	return cmd
}

func newDepsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [PACKAGE]",
		Short: "Print the package dependency order, or one package's dependencies",
		Args:  usage(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			var names []string
			if len(args) == 1 {
				names, err = a.PackageDependencies(args[0])
			} else {
				names, err = a.PackageOrder()
			}
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// readDocument reads a JSON or YAML document from a file, or from in when
// path is "-".
func readDocument(in io.Reader, path string) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".json" {
		return ast.ParseJSON(data)
	}
	return ast.ParseYAML(data)
}

// parseMapping reads an inline JSON/YAML mapping, or the file named after
// an @ prefix ("@-" reads in). An empty value yields nil.
func parseMapping(in io.Reader, value string) (map[string]any, error) {
	if value == "" {
		return nil, nil
	}
	var raw any
	var err error
	if value[0] == '@' {
		raw, err = readDocument(in, value[1:])
	} else {
		raw, err = ast.ParseYAML([]byte(value))
	}
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok && raw != nil {
		return nil, fmt.Errorf("expected a mapping, got %T", raw)
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
