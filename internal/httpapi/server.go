package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/obs"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/resource"
)

// CatalogSource returns the catalog to serve a request with.
// *config.Holder[*resource.Catalog] satisfies it.
type CatalogSource interface {
	Get() *resource.Catalog
}

// StaticCatalog serves one catalog forever.
type StaticCatalog struct{ Catalog *resource.Catalog }

func (s StaticCatalog) Get() *resource.Catalog { return s.Catalog }

// Options configures a Server. Zero values disable the optional features.
type Options struct {
	Logger       *slog.Logger
	Metrics      *obs.Metrics // nil disables /metrics and instrumentation
	MetricsPath  string
	Identity     *IdentityDecoder // nil: every caller is anonymous
	CORS         config.CORSConfig
	RateLimit    config.RateLimitConfig
	Docs         config.DocsConfig
	MaxBodyBytes int64
	IDs          engine.IDGenerator
}

// OptionsFromConfig maps the application config to server options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger, metrics *obs.Metrics) (Options, error) {
	decoder, err := NewIdentityDecoder(cfg.Auth)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Logger:       logger,
		Identity:     decoder,
		CORS:         cfg.CORS,
		RateLimit:    cfg.RateLimit,
		Docs:         cfg.Docs,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics
		opts.MetricsPath = cfg.Metrics.Path
	}
	return opts, nil
}

// Server is the HTTP boundary over a catalog.
type Server struct {
	catalogs CatalogSource
	logger   *slog.Logger
	decoder  *IdentityDecoder
	opts     Options
	router   chi.Router
}

// New builds the router. The returned server is an http.Handler.
func New(catalogs CatalogSource, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = obs.Discard()
	}
	if opts.IDs == nil {
		opts.IDs = engine.UUIDv7Generator{}
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.Docs.Title == "" {
		opts.Docs.Title = "squealy"
	}

	s := &Server{
		catalogs: catalogs,
		logger:   opts.Logger,
		decoder:  opts.Identity,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID(s.opts.IDs))
	r.Use(middleware.Recoverer)
	r.Use(Logging(s.logger))
	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Instrument(routePattern))
	}
	if s.opts.CORS.Enabled {
		r.Use(CORS(s.opts.CORS))
	}
	if s.opts.RateLimit.Enabled {
		r.Use(NewRateLimiter(s.opts.RateLimit.PerSecond, s.opts.RateLimit.Burst).Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics != nil {
		r.Handle(s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
	if s.opts.Docs.Enabled {
		r.Get("/swagger", s.handleSwagger)
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger")))
	}

	r.Get("/resources/{id}", s.handleByID)
	r.Post("/resources/{id}", s.handleByID)

	// Resource paths come from the catalog, which can change on reload.
	r.Get("/*", s.handleByPath)
	r.Post("/*", s.handleByPath)

	return r
}

// routePattern labels metrics by the matched chi pattern so resource paths
// do not create one series per URL.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (s *Server) handleByID(w http.ResponseWriter, r *http.Request) {
	c := s.catalogs.Get()
	res, err := c.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.process(w, r, res)
}

func (s *Server) handleByPath(w http.ResponseWriter, r *http.Request) {
	c := s.catalogs.Get()
	res, err := c.ByPath(r.URL.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.process(w, r, res)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request, res *resource.Resource) {
	raw, err := s.requestParams(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Code:      params.CodeBadRequest,
			Message:   err.Error(),
			RequestID: resource.RequestID(r.Context()),
		}})
		return
	}

	doc, err := res.Process(r.Context(), s.identity(r), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// requestParams collects the raw parameters: the first value of every query
// string key, overlaid with the fields of a JSON object body on POST. The
// access token is never passed on as a parameter.
func (s *Server) requestParams(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	raw := make(map[string]any)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			raw[k] = vs[0]
		}
	}
	delete(raw, accessTokenParam)

	if r.Method != http.MethodPost || r.Body == nil {
		return raw, nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return nil, fmt.Errorf("unsupported content type %q", ct)
		}
	}

	body := r.Body
	if s.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	for k, v := range fields {
		raw[k] = v
	}
	delete(raw, accessTokenParam)
	return raw, nil
}

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildOpenAPI(s.catalogs.Get(), s.opts.Docs.Title, serverURL(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	c := s.catalogs.Get()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := c.Engines().Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"resources": c.Len(),
		"catalog":   c.Hash(),
	})
}

// ListenAndServe runs handler on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
