package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/formatter"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/queryir"
	"github.com/imgaoyue/squealy/internal/querysql"
)

// Observer receives one call per processed request.
type Observer interface {
	ObserveResource(resourceID, outcome string, elapsed time.Duration)
}

// Resource is an immutable, callable data endpoint.
type Resource struct {
	spec       ir.ResourceSpec
	hash       string
	query      *querysql.Template
	engine     engine.Engine
	authorizer Authorizer
	params     []params.Parameter
	formatter  formatter.Formatter
	logger     *slog.Logger
	observer   Observer
}

// buildEnv carries the shared collaborators of a build.
type buildEnv struct {
	set      *querysql.Set
	engines  *engine.Registry
	clock    params.Clock
	logger   *slog.Logger
	observer Observer
}

// build compiles spec into a Resource. All failures are *ConfigError.
func build(spec ir.ResourceSpec, env buildEnv) (*Resource, error) {
	fail := func(format string, args ...any) error {
		return &ConfigError{Resource: spec.ID, Err: fmt.Errorf(format, args...)}
	}
	if strings.TrimSpace(spec.ID) == "" {
		return nil, &ConfigError{Err: errors.New("resource id is required")}
	}
	if strings.TrimSpace(spec.Query) == "" {
		return nil, fail("query is required")
	}
	if spec.Path == "" {
		spec.Path = "/" + spec.ID
	}

	eng, err := env.engines.Lookup(spec.Datasource)
	if err != nil {
		return nil, fail("%w", err)
	}
	query, err := env.set.Compile("resource/"+spec.ID, spec.Query)
	if err != nil {
		return nil, fail("%w", err)
	}

	rules := make([]Rule, 0, len(spec.Authorization))
	seenRules := make(map[string]bool)
	for i, r := range spec.Authorization {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Query) == "" {
			return nil, fail("authorization[%d]: id and query are required", i)
		}
		if seenRules[r.ID] {
			return nil, fail("authorization[%d]: duplicate rule id %q", i, r.ID)
		}
		seenRules[r.ID] = true
		tmpl, err := env.set.Compile("resource/"+spec.ID+"/authorization/"+r.ID, r.Query)
		if err != nil {
			return nil, fail("authorization[%d]: %w", i, err)
		}
		rules = append(rules, Rule{ID: r.ID, query: tmpl})
	}

	ps := make([]params.Parameter, 0, len(spec.Parameters))
	seenParams := make(map[string]bool)
	for i, p := range spec.Parameters {
		param, err := params.New(p, env.clock)
		if err != nil {
			return nil, fail("parameters[%d]: %w", i, err)
		}
		if seenParams[param.Name()] {
			return nil, fail("parameters[%d]: duplicate parameter %q", i, param.Name())
		}
		seenParams[param.Name()] = true
		ps = append(ps, param)
	}

	f, err := formatter.New(spec.Formatter)
	if err != nil {
		return nil, fail("%w", err)
	}
	spec.Formatter = f.Name()

	hash, err := ir.ResourceHash(spec)
	if err != nil {
		return nil, fail("%w", err)
	}

	logger := env.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resource{
		spec:       spec,
		hash:       hash,
		query:      query,
		engine:     eng,
		authorizer: Authorizer{Rules: rules, Engine: eng},
		params:     ps,
		formatter:  f,
		logger:     logger.With("resource", spec.ID),
		observer:   env.observer,
	}, nil
}

// Process runs the request pipeline and returns the formatted document.
// raw is copied and never modified.
func (r *Resource) Process(ctx context.Context, identity Identity, raw map[string]any) (doc any, err error) {
	start := time.Now()
	log := r.logger.With("request_id", RequestID(ctx))
	defer func() {
		elapsed := time.Since(start)
		outcome := Outcome(err)
		if r.observer != nil {
			r.observer.ObserveResource(r.spec.ID, outcome, elapsed)
		}
		log.Debug("processed", "outcome", outcome, "duration", elapsed)
	}()

	if r.spec.RequiresAuthentication && identity == nil {
		return nil, ErrUnauthorized
	}

	rc := Context{
		Config:   r.spec.Config,
		Identity: identity,
		Params:   make(map[string]any, len(raw)+len(r.params)),
	}
	maps.Copy(rc.Params, raw)

	if len(r.authorizer.Rules) > 0 {
		log.Debug("authorizing", "rules", len(r.authorizer.Rules))
		if err := r.authorizer.Authorize(ctx, rc.TemplateData()); err != nil {
			return nil, err
		}
	}

	if err := r.normalize(raw, rc.Params); err != nil {
		return nil, err
	}

	q, err := r.query.Render(rc.TemplateData(), r.engine.BindStyle())
	if err != nil {
		return nil, err
	}
	log.Debug("executing", "sql", q.SQL, "args", q.Args.Len())

	tbl, err := r.engine.Execute(ctx, q.SQL, q.Args)
	if err != nil {
		return nil, err
	}

	return r.formatter.Format(tbl)
}

// normalize writes the normalized value of every declared parameter into
// dst. Undeclared keys already in dst are left alone.
func (r *Resource) normalize(raw, dst map[string]any) error {
	for _, p := range r.params {
		v, err := p.Normalize(raw[p.Name()])
		if err != nil {
			return err
		}
		dst[p.Name()] = v
	}
	return nil
}

// Render normalizes raw and renders the resource query for style without
// running anything. Authorization rules are not evaluated. An empty style
// means the bind style of the resource's engine.
func (r *Resource) Render(identity Identity, raw map[string]any, style queryir.BindStyle) (queryir.Query, error) {
	if style == "" {
		style = r.engine.BindStyle()
	}
	rc := Context{
		Config:   r.spec.Config,
		Identity: identity,
		Params:   make(map[string]any, len(raw)+len(r.params)),
	}
	maps.Copy(rc.Params, raw)
	if err := r.normalize(raw, rc.Params); err != nil {
		return queryir.Query{}, err
	}
	return r.query.Render(rc.TemplateData(), style)
}

// ID returns the stable resource identifier.
func (r *Resource) ID() string { return r.spec.ID }

// Path returns the route path.
func (r *Resource) Path() string { return r.spec.Path }

// Summary returns the one-line description.
func (r *Resource) Summary() string { return r.spec.Summary }

// Description returns the long description.
func (r *Resource) Description() string { return r.spec.Description }

// RequiresAuthentication reports whether anonymous callers are rejected.
func (r *Resource) RequiresAuthentication() bool { return r.spec.RequiresAuthentication }

// FormatterName returns the canonical formatter name.
func (r *Resource) FormatterName() string { return r.formatter.Name() }

// Datasource returns the datasource name, "" for the default engine.
func (r *Resource) Datasource() string { return r.spec.Datasource }

// Hash returns the content hash of the compiled definition.
func (r *Resource) Hash() string { return r.hash }

// Spec returns a copy of the compiled definition.
func (r *Resource) Spec() ir.ResourceSpec { return r.spec }

// Parameters returns documentation metadata for each declared parameter.
func (r *Resource) Parameters() []params.Doc {
	docs := make([]params.Doc, len(r.params))
	for i, p := range r.params {
		docs[i] = p.Doc()
	}
	return docs
}
