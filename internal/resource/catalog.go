package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/querysql"
)

// Catalog is an immutable set of resources keyed by id and path.
type Catalog struct {
	byID    map[string]*Resource
	byPath  map[string]*Resource
	ordered []*Resource
	engines *engine.Registry
	hash    string
}

// Option configures catalog construction.
type Option func(*buildEnv)

// WithClock sets the clock for date macros and date helpers.
func WithClock(c params.Clock) Option {
	return func(e *buildEnv) { e.clock = c }
}

// WithLogger sets the logger resources log through.
func WithLogger(l *slog.Logger) Option {
	return func(e *buildEnv) { e.logger = l }
}

// WithObserver sets the observer notified after every request.
func WithObserver(o Observer) Option {
	return func(e *buildEnv) { e.observer = o }
}

// NewCatalog builds every resource in defs against engines. The first
// failure aborts construction, so a catalog is either complete or absent.
func NewCatalog(defs ir.Definitions, engines *engine.Registry, opts ...Option) (*Catalog, error) {
	env := buildEnv{engines: engines, clock: params.SystemClock{}}
	for _, opt := range opts {
		opt(&env)
	}
	if engines == nil {
		return nil, &ConfigError{Err: fmt.Errorf("no engines configured")}
	}

	set, err := querysql.NewSet(defs.Snippets, querysql.WithClock(env.clock))
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	env.set = set

	c := &Catalog{
		byID:    make(map[string]*Resource, len(defs.Resources)),
		byPath:  make(map[string]*Resource, len(defs.Resources)),
		engines: engines,
	}
	for _, spec := range defs.Resources {
		r, err := build(spec, env)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[r.ID()]; dup {
			return nil, &ConfigError{Resource: r.ID(), Err: fmt.Errorf("duplicate resource id")}
		}
		if other, dup := c.byPath[r.Path()]; dup {
			return nil, &ConfigError{Resource: r.ID(), Err: fmt.Errorf("path %q already used by %q", r.Path(), other.ID())}
		}
		c.byID[r.ID()] = r
		c.byPath[r.Path()] = r
		c.ordered = append(c.ordered, r)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID() < c.ordered[j].ID() })

	hash, err := ir.CatalogHash(defs)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	c.hash = hash
	return c, nil
}

// Get returns the resource with id, or ErrNotFound.
func (c *Catalog) Get(id string) (*Resource, error) {
	if r, ok := c.byID[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// ByPath returns the resource mounted at path, or ErrNotFound.
func (c *Catalog) ByPath(path string) (*Resource, error) {
	if r, ok := c.byPath[path]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
}

// Resources returns every resource sorted by id.
func (c *Catalog) Resources() []*Resource {
	return append([]*Resource(nil), c.ordered...)
}

// Len returns the number of resources.
func (c *Catalog) Len() int { return len(c.ordered) }

// Hash identifies the definition set the catalog was built from.
func (c *Catalog) Hash() string { return c.hash }

// Engines returns the engine registry.
func (c *Catalog) Engines() *engine.Registry { return c.engines }

// Process looks up id and processes the request.
func (c *Catalog) Process(ctx context.Context, id string, identity Identity, raw map[string]any) (any, error) {
	r, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return r.Process(ctx, identity, raw)
}

// Close releases the catalog's engines.
func (c *Catalog) Close() error {
	return c.engines.Close()
}
