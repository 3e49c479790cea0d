package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue/cuecontext"

	"github.com/imgaoyue/squealy/internal/compiler"
	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/resource"
	"github.com/imgaoyue/squealy/internal/store"
	"github.com/imgaoyue/squealy/internal/testutil"
)

// Harness holds the per-scenario database and catalog.
type Harness struct {
	store   *store.Store
	catalog *resource.Catalog
	clock   *testutil.FixedClock
	ids     engine.IDGenerator
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes pipeline logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario in a fresh in-memory database and returns the
// result. The error return is reserved for scenarios that cannot run at
// all; failed expectations are reported in the result.
//
// Execution flow:
//  1. Compile definitions and inline documents
//  2. Open the scenario database and run setup statements
//  3. Build the catalog against it
//  4. Process every request and check its expect clause
//  5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		ids:    testutil.NewFixedRequestIDGenerator(scenario.RequestID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	clock := testutil.NewFixedClock(time.Time{})
	if scenario.Clock != "" {
		c, err := testutil.ParseFixedClock(scenario.Clock)
		if err != nil {
			return nil, fmt.Errorf("clock: %w", err)
		}
		clock = c
	}
	h.clock = clock

	defs, err := loadDefinitions(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	st, err := store.Open(ctx, ir.DatasourceSpec{
		ID:     ir.DefaultEngineName,
		Driver: store.DriverSQLite,
		Init:   scenario.Setup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	engines := engine.NewRegistry()
	if err := engines.Register(ir.DefaultEngineName, st); err != nil {
		return nil, err
	}
	catalog, err := resource.NewCatalog(*defs, engines,
		resource.WithClock(clock),
		resource.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	h.catalog = catalog

	result := NewResult()
	if err := h.executeRequests(ctx, scenario.Requests, result); err != nil {
		return nil, fmt.Errorf("failed to execute requests: %w", err)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// loadDefinitions compiles the scenario's files and inline documents.
// Every resource is pointed at the scenario database.
func loadDefinitions(scenario *Scenario) (*ir.Definitions, error) {
	cctx := cuecontext.New()
	defs := &ir.Definitions{}

	compile := func(name string, data []byte) error {
		docs, err := compiler.ParseYAML(cctx, name, data)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := compiler.CompileDocument(doc, defs); err != nil {
				return fmt.Errorf("%s:%d: %w", name, doc.Line, err)
			}
		}
		return nil
	}

	for _, path := range scenario.Definitions {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := compile(path, data); err != nil {
			return nil, err
		}
	}
	if scenario.Documents != "" {
		if err := compile(scenario.Name+".documents", []byte(scenario.Documents)); err != nil {
			return nil, err
		}
	}

	defs.Datasources = nil
	for i := range defs.Resources {
		defs.Resources[i].Datasource = ""
	}
	compiler.SortDefinitions(defs)

	if verrs := compiler.Validate(defs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}
	return defs, nil
}

// executeRequests processes every step and records its trace event.
func (h *Harness) executeRequests(ctx context.Context, steps []RequestStep, result *Result) error {
	for i, step := range steps {
		var identity resource.Identity
		if step.Identity != nil {
			identity = resource.Identity(step.Identity)
		}

		reqCtx := resource.WithRequestID(ctx, h.ids.Generate())
		doc, err := h.catalog.Process(reqCtx, step.Resource, identity, step.Params)
		outcome := resource.Outcome(err)

		ev := TraceEvent{
			Seq:      int64(i + 1),
			Name:     step.Name,
			Resource: step.Resource,
			Outcome:  outcome,
		}
		if len(step.Params) > 0 {
			p, gerr := toGeneric(step.Params)
			if gerr != nil {
				return fmt.Errorf("%s: params: %w", step.label(i), gerr)
			}
			ev.Params, _ = p.(map[string]any)
		}
		if err != nil {
			ev.Error = err.Error()
		} else {
			generic, gerr := toGeneric(doc)
			if gerr != nil {
				return fmt.Errorf("%s: document: %w", step.label(i), gerr)
			}
			ev.Doc = generic
		}
		result.AddTrace(ev)

		for _, msg := range checkExpect(step, i, ev, err) {
			result.AddError(msg)
		}

		h.logger.Debug("request step completed",
			"step", i,
			"resource", step.Resource,
			"outcome", outcome,
		)
	}
	return nil
}

// checkExpect compares a processed request with its expect clause.
func checkExpect(step RequestStep, i int, ev TraceEvent, err error) []string {
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{Outcome: resource.OutcomeOK}
	}

	var failures []string
	label := step.label(i)

	if ev.Outcome != expect.Outcome {
		msg := fmt.Sprintf("%s: expected outcome %q, got %q", label, expect.Outcome, ev.Outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		return append(failures, msg)
	}

	if expect.Code != "" {
		pe, ok := params.AsParamError(err)
		switch {
		case !ok:
			failures = append(failures, fmt.Sprintf("%s: expected parameter error %s, got %v", label, expect.Code, err))
		case pe.Code != expect.Code:
			failures = append(failures, fmt.Sprintf("%s: expected parameter error %s, got %s", label, expect.Code, pe.Code))
		}
	}

	if expect.Rule != "" {
		var fe *resource.ForbiddenError
		switch {
		case !errors.As(err, &fe):
			failures = append(failures, fmt.Sprintf("%s: expected rule %q to fail, got %v", label, expect.Rule, err))
		case fe.RuleID != expect.Rule:
			failures = append(failures, fmt.Sprintf("%s: expected rule %q to fail, got %q", label, expect.Rule, fe.RuleID))
		}
	}

	if expect.Doc != nil {
		want, gerr := toGeneric(expect.Doc)
		if gerr != nil {
			return append(failures, fmt.Sprintf("%s: expected doc: %v", label, gerr))
		}
		if !matchSubset(want, ev.Doc) {
			failures = append(failures, fmt.Sprintf("%s: document mismatch\n  expected: %s\n  actual:   %s",
				label, compactJSON(want), compactJSON(ev.Doc)))
		}
	}

	return failures
}

// toGeneric converts v to the shape encoding/json decodes into: maps,
// slices, strings, float64, bool and nil. Formatter documents and YAML
// values then compare structurally.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
