package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/queryir"
	"github.com/imgaoyue/squealy/internal/resource"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	RequestOptions
	Style string
}

// RenderResult is the rendered statement of one request.
type RenderResult struct {
	Resource string `json:"resource"`
	Style    string `json:"style"`
	SQL      string `json:"sql"`
	Args     any    `json:"args"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <resources-dir> <resource-id>",
		Short: "Show the SQL and bindings a request would execute",
		Long: `Normalize the parameters of a request and render the resource query
without opening any datasource. Authorization rules are not evaluated.

The bind style defaults to qmark; use --style to see the statement as a
particular driver would receive it.

Examples:
  squealy render ./resources monthly-sales -p month=jan
  squealy render ./resources regional-sales --style dollar \
      --identity '{"regions":["north","south"]}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], args[1], cmd)
		},
	}
	opts.addRequestFlags(cmd)
	cmd.Flags().StringVar(&opts.Style, "style", string(queryir.StyleQmark), "bind style (qmark, numeric, format, named, pyformat, dollar)")

	return cmd
}

func runRender(opts *RenderOptions, dir, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	style, err := queryir.ParseBindStyle(opts.Style)
	if err != nil {
		return formatter.CommandFailed("invalid --style", err)
	}
	raw, identity, err := opts.request()
	if err != nil {
		return formatter.CommandFailed("invalid request", err)
	}

	result, loadErrs := LoadDefinitions(dir, LoadModeCollectAll)
	if len(loadErrs) > 0 {
		return formatter.CommandFailed("loading definitions", &DefinitionsError{Load: loadErrs})
	}

	// Rendering never executes, so one stub engine stands in for every
	// datasource.
	engines := engine.NewRegistry()
	if err := engines.Register(ir.DefaultEngineName, noExec(style)); err != nil {
		return err
	}
	defs := result.Definitions
	defs.Datasources = nil
	for i := range defs.Resources {
		defs.Resources[i].Datasource = ir.DefaultEngineName
	}

	catalog, err := resource.NewCatalog(defs, engines)
	if err != nil {
		return formatter.CommandFailed("building catalog", err)
	}
	r, err := catalog.Get(id)
	if err != nil {
		return formatter.CommandFailed("unknown resource", err)
	}

	q, err := r.Render(identity, raw, style)
	if err != nil {
		return formatter.RequestFailed("render failed", err)
	}

	out := RenderResult{Resource: id, Style: string(style), SQL: q.SQL, Args: bindingsValue(q.Args)}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintln(formatter.Writer, q.SQL)
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "-- %s bindings: %v\n", style, out.Args)
	return nil
}

func bindingsValue(b queryir.Bindings) any {
	switch v := b.(type) {
	case queryir.Positional:
		return []any(v)
	case queryir.Named:
		return map[string]any(v)
	}
	return nil
}

func noExec(style queryir.BindStyle) engine.Func {
	return engine.Func{Style: style, Fn: func(context.Context, string, queryir.Bindings) (*ir.Table, error) {
		return nil, errors.New("render does not execute queries")
	}}
}
