package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imgaoyue/squealy/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled definition set with content hashes.
type CompilationResult struct {
	SchemaVersion string            `json:"schema_version"`
	CatalogHash   string            `json:"catalog_hash"`
	Hashes        map[string]string `json:"hashes"` // resource id -> hash
	ir.Definitions
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ResourceCount   int
	SnippetCount    int
	DatasourceCount int
	ParameterCount  int
	RuleCount       int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <resources-dir>",
		Short: "Compile resource definitions to canonical JSON",
		Long: `Compile YAML and CUE resource definitions to their canonical JSON form.

The compiler parses every definition file, validates the result and prints
(or writes with -o) the compiled definitions with a content hash per
resource.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadDefinitions(dir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d definition file(s) in %s", loadResult.FileCount, dir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	defs := loadResult.Definitions
	if verrs := ValidateDefinitions(&defs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = &LoadError{Code: v.Code, Message: fmt.Sprintf("%s: %s", v.Field, v.Message)}
		}
		return outputCompileErrors(formatter, errs)
	}

	result, err := buildCompilationResult(defs)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	for _, r := range result.Resources {
		formatter.VerboseLog("Compiled resource: %s (%s)", r.ID, result.Hashes[r.ID][:12])
	}

	if opts.Output != "" {
		if err := writeDefinitionsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, calculateStats(defs), opts.Output)
}

func buildCompilationResult(defs ir.Definitions) (*CompilationResult, error) {
	catalogHash, err := ir.CatalogHash(defs)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(defs.Resources))
	for _, r := range defs.Resources {
		h, err := ir.ResourceHash(r)
		if err != nil {
			return nil, err
		}
		hashes[r.ID] = h
	}
	return &CompilationResult{
		SchemaVersion: ir.SchemaVersion,
		CatalogHash:   catalogHash,
		Hashes:        hashes,
		Definitions:   defs,
	}, nil
}

// calculateStats computes summary statistics from compiled definitions.
func calculateStats(defs ir.Definitions) CompilationStats {
	stats := CompilationStats{
		ResourceCount:   len(defs.Resources),
		SnippetCount:    len(defs.Snippets),
		DatasourceCount: len(defs.Datasources),
	}
	for _, r := range defs.Resources {
		stats.ParameterCount += len(r.Parameters)
		stats.RuleCount += len(r.Authorization)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d resource(s), %d snippet(s), %d datasource(s)\n\n",
		stats.ResourceCount, stats.SnippetCount, stats.DatasourceCount)

	if len(result.Resources) > 0 {
		fmt.Fprintln(formatter.Writer, "Resources:")
		for _, r := range result.Resources {
			auth := "public"
			if r.RequiresAuthentication {
				auth = "authenticated"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s → %s, %d parameter(s), %d rule(s), %s\n",
				r.ID, r.Path, r.Formatter, len(r.Parameters), len(r.Authorization), auth)
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "Catalog hash: %s\n", result.CatalogHash)
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled definitions to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeDefinitionsToFile writes the compilation result as indented JSON.
// Canonical JSON without indentation is used only for hashing.
func writeDefinitionsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling definitions: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
