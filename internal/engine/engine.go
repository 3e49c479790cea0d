package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/queryir"
)

// Engine executes rendered queries.
type Engine interface {
	// Execute runs sql with args and returns the result table.
	Execute(ctx context.Context, sql string, args queryir.Bindings) (*ir.Table, error)

	// BindStyle is the placeholder convention this engine expects.
	BindStyle() queryir.BindStyle
}

// Pinger is implemented by engines that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is implemented by engines holding connections.
type Closer interface {
	Close() error
}

// Registry maps datasource names to engines.
//
// Registry is built once at startup or reload and then only read.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	first   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds an engine under name. Duplicate names are an error.
func (r *Registry) Register(name string, e Engine) error {
	if name == "" {
		return fmt.Errorf("engine name is required")
	}
	if e == nil {
		return fmt.Errorf("engine %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("engine %q already registered", name)
	}
	r.engines[name] = e
	if r.first == "" {
		r.first = name
	}
	return nil
}

// Lookup returns the engine for name. An empty name resolves to the engine
// named ir.DefaultEngineName, or the first registered engine.
func (r *Registry) Lookup(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		if e, ok := r.engines[ir.DefaultEngineName]; ok {
			return e, nil
		}
		if r.first == "" {
			return nil, fmt.Errorf("no default engine registered")
		}
		return r.engines[r.first], nil
	}
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown datasource %q", name)
	}
	return e, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ping checks every engine implementing Pinger. The first failure is
// returned wrapped with the engine name.
func (r *Registry) Ping(ctx context.Context) error {
	for _, name := range r.Names() {
		e, _ := r.Lookup(name)
		if p, ok := e.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return &ExecutionError{Engine: name, Err: err}
			}
		}
	}
	return nil
}

// Close closes every engine implementing Closer and returns the first error.
func (r *Registry) Close() error {
	var first error
	for _, name := range r.Names() {
		e, _ := r.Lookup(name)
		if c, ok := e.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("close %s: %w", name, err)
			}
		}
	}
	return first
}

// Func adapts a function to Engine.
type Func struct {
	Style queryir.BindStyle
	Fn    func(ctx context.Context, sql string, args queryir.Bindings) (*ir.Table, error)
}

// Execute calls f.Fn.
func (f Func) Execute(ctx context.Context, sql string, args queryir.Bindings) (*ir.Table, error) {
	return f.Fn(ctx, sql, args)
}

// BindStyle returns f.Style.
func (f Func) BindStyle() queryir.BindStyle { return f.Style }
