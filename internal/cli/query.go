package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/resource"
	"github.com/imgaoyue/squealy/internal/store"
)

// cliRequestID tags requests processed from the command line.
const cliRequestID = "cli"

// RequestOptions are the flags describing one resource request.
type RequestOptions struct {
	Params     []string // k=v pairs
	Identity   string   // JSON claims; empty means anonymous
	ConfigPath string
	Database   string // SQLite URL registered as the default datasource
}

func (o *RequestOptions) addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Params, "param", "p", nil, "request parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&o.Identity, "identity", "", "caller identity claims as JSON")
}

func (o *RequestOptions) addDatasourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ConfigPath, "config", "", "config file declaring datasources")
	cmd.Flags().StringVar(&o.Database, "db", "", "SQLite database used as the default datasource")
}

// request parses the raw parameters and identity.
func (o *RequestOptions) request() (map[string]any, resource.Identity, error) {
	raw, err := parseParams(o.Params)
	if err != nil {
		return nil, nil, err
	}
	var identity resource.Identity
	if o.Identity != "" {
		if err := json.Unmarshal([]byte(o.Identity), &identity); err != nil {
			return nil, nil, fmt.Errorf("invalid --identity JSON: %w", err)
		}
	}
	return raw, identity, nil
}

// definitions loads and validates dir with the datasources from --config
// and --db merged in.
func (o *RequestOptions) definitions(dir string) (*ir.Definitions, error) {
	var cfg *config.Config
	if o.ConfigPath != "" {
		c, err := config.Load(o.ConfigPath)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
		}
		cfg = c
	}
	if o.Database != "" {
		if cfg == nil {
			cfg = &config.Config{}
		}
		cfg.Datasources = append(cfg.Datasources, config.DatasourceConfig{
			ID:     ir.DefaultEngineName,
			Driver: store.DriverSQLite,
			URL:    o.Database,
		})
	}
	return LoadValidated(dir, cfg, LoadModeCollectAll)
}

func parseParams(pairs []string) (map[string]any, error) {
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", p)
		}
		raw[strings.TrimSpace(k)] = v
	}
	return raw, nil
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	RequestOptions
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <resources-dir> <resource-id>",
		Short: "Process one resource request and print the document",
		Long: `Process one request against a resource, exactly as the HTTP server would,
and print the formatted document.

Examples:
  squealy query ./resources monthly-sales --db ./sales.db -p month=jan
  squealy query ./resources regional-sales --config squealy.yml \
      --identity '{"sub":"u1","regions":["north"]}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}
	opts.addRequestFlags(cmd)
	opts.addDatasourceFlags(cmd)

	return cmd
}

func runQuery(opts *QueryOptions, dir, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	raw, identity, err := opts.request()
	if err != nil {
		return formatter.CommandFailed("invalid request", err)
	}

	defs, err := opts.definitions(dir)
	if err != nil {
		return formatter.CommandFailed("loading definitions", err)
	}

	logger := commandLogger(opts.RootOptions, formatter.GetErrWriter())
	catalog, err := BuildCatalog(cmd.Context(), defs, resource.WithLogger(logger))
	if err != nil {
		return formatter.CommandFailed("building catalog", err)
	}
	defer catalog.Close()

	formatter.VerboseLog("Processing %s with %d parameter(s)", id, len(raw))
	formatter.RequestID = cliRequestID
	ctx := resource.WithRequestID(cmd.Context(), cliRequestID)
	doc, err := catalog.Process(ctx, id, identity, raw)
	if err != nil {
		return formatter.RequestFailed("request failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(doc)
	}
	enc := json.NewEncoder(formatter.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
