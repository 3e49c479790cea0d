package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/httpapi"
	"github.com/imgaoyue/squealy/internal/obs"
	"github.com/imgaoyue/squealy/internal/resource"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string
	Addr       string
	Watch      bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [resources-dir]",
		Short: "Serve resources over HTTP",
		Long: `Load the resource definitions, open their datasources and serve every
resource as a JSON endpoint.

The resources directory comes from the argument, the config file or
SQUEALY_RESOURCES_DIR, in that order. With --watch (or resources.watch)
the catalog is rebuilt when a definition file changes; SIGHUP always
triggers a rebuild. A rebuild that fails keeps the previous catalog.

Examples:
  squealy serve --config squealy.yml
  squealy serve ./resources --addr :9000 --watch`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runServe(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to squealy.yml")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "rebuild the catalog when definition files change")

	return cmd
}

func runServe(opts *ServeOptions, dir string, cmd *cobra.Command) error {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if dir != "" {
		cfg.Resources.Dir = dir
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Watch {
		cfg.Resources.Watch = true
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := obs.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid logging config", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := obs.NewMetrics(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func(ctx context.Context) (*resource.Catalog, error) {
		return loadCatalog(ctx, cfg, logger, metrics)
	}
	holder, err := config.NewHolder(ctx, load, logger, config.WithReloadResult[*resource.Catalog](metrics.ObserveReload))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load resources", err)
	}

	// In-flight requests may still hold the old catalog; close its engines
	// once they have had time to finish.
	grace := cfg.Server.WriteTimeout
	holder.OnChange(func(old, _ *resource.Catalog) {
		time.AfterFunc(grace, func() {
			if err := old.Close(); err != nil {
				logger.Warn("closing previous catalog", "error", err)
			}
		})
	})

	if cfg.Resources.Watch {
		if err := holder.WatchDir(cfg.Resources.Dir); err != nil {
			holder.Get().Close()
			return WrapExitError(ExitCommandError, "failed to watch resources", err)
		}
	}
	holder.WatchSignals()
	defer func() {
		holder.Stop()
		if err := holder.Get().Close(); err != nil {
			logger.Error("error closing datasources", "error", err)
		}
	}()

	serverOpts, err := httpapi.OptionsFromConfig(cfg, logger, metrics)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid auth config", err)
	}
	handler := httpapi.New(holder, serverOpts)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d resource(s) on %s\n", holder.Get().Len(), cfg.Server.Addr)
	if err := httpapi.ListenAndServe(ctx, cfg.Server, handler, logger); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// loadCatalog builds a catalog from the configured resources directory.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *obs.Metrics) (*resource.Catalog, error) {
	c, err := OpenCatalog(ctx, cfg.Resources.Dir, cfg,
		resource.WithLogger(logger),
		resource.WithObserver(metrics),
	)
	if err != nil {
		return nil, err
	}
	for _, r := range c.Resources() {
		logger.Debug("resource loaded", "resource", r.ID(), "path", r.Path(), "hash", r.Hash())
	}
	logger.Info("catalog loaded", "dir", cfg.Resources.Dir, "resources", c.Len(), "hash", c.Hash())
	return c, nil
}
