package compiler

import (
	"fmt"
	"sort"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/imgaoyue/squealy/internal/ir"
)

// CompileResource parses a CUE value into a ResourceSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the resource struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`resource: "monthly-sales": { query: "SELECT 1" }`)
//	spec, err := CompileResource(v.LookupPath(cue.MakePath(cue.Str("resource"), cue.Str("monthly-sales"))))
//
// When the struct has no id field, the id is taken from the struct label.
// Defaults: path "/<id>", formatter SimpleFormatter, requiresAuthentication true.
func CompileResource(v cue.Value) (*ir.ResourceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ResourceSpec{RequiresAuthentication: true}

	var err error
	if spec.ID, err = idOf(v); err != nil {
		return nil, err
	}

	// Parse query (required)
	queryVal := v.LookupPath(cue.ParsePath("query"))
	if !queryVal.Exists() {
		return nil, &CompileError{
			Field:   "query",
			Message: "query is required",
			Pos:     v.Pos(),
		}
	}
	if spec.Query, err = queryVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	for _, f := range []struct {
		path string
		dst  *string
	}{
		{"path", &spec.Path},
		{"summary", &spec.Summary},
		{"description", &spec.Description},
		{"datasource", &spec.Datasource},
		{"formatter", &spec.Formatter},
	} {
		if *f.dst, err = optionalString(v, f.path); err != nil {
			return nil, err
		}
	}
	if spec.Path == "" {
		spec.Path = "/" + spec.ID
	}
	if spec.Formatter == "" {
		spec.Formatter = "SimpleFormatter"
	}

	// Parse authentication (optional)
	authVal := v.LookupPath(cue.ParsePath("authentication.requiresAuthentication"))
	if authVal.Exists() {
		if spec.RequiresAuthentication, err = authVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if spec.Authorization, err = parseAuthorization(v); err != nil {
		return nil, err
	}
	if spec.Parameters, err = parseParameters(v); err != nil {
		return nil, err
	}

	// Parse config (optional, free-form)
	configVal := v.LookupPath(cue.ParsePath("config"))
	if configVal.Exists() {
		cfg, err := decodeValue(configVal)
		if err != nil {
			return nil, err
		}
		m, ok := cfg.(map[string]any)
		if !ok {
			return nil, &CompileError{
				Field:   "config",
				Message: "config must be an object",
				Pos:     configVal.Pos(),
			}
		}
		spec.Config = m
	}

	return spec, nil
}

// parseAuthorization extracts the ordered authorization rules.
func parseAuthorization(v cue.Value) ([]ir.AuthzRule, error) {
	var rules []ir.AuthzRule

	authzVal := v.LookupPath(cue.ParsePath("authorization"))
	if !authzVal.Exists() {
		return rules, nil // authorization is optional
	}

	iter, err := authzVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "authorization",
			Message: "authorization must be a list of {id, query}",
			Pos:     authzVal.Pos(),
		}
	}

	for i := 0; iter.Next(); i++ {
		ruleVal := iter.Value()
		field := fmt.Sprintf("authorization[%d]", i)

		id, err := requiredString(ruleVal, "id", field+".id")
		if err != nil {
			return nil, err
		}
		query, err := requiredString(ruleVal, "query", field+".query")
		if err != nil {
			return nil, err
		}
		rules = append(rules, ir.AuthzRule{ID: id, Query: query})
	}

	return rules, nil
}

// parseParameters extracts the ordered parameter declarations.
func parseParameters(v cue.Value) ([]ir.ParamSpec, error) {
	var ps []ir.ParamSpec

	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if !paramsVal.Exists() {
		return ps, nil
	}

	iter, err := paramsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "parameters",
			Message: "parameters must be a list",
			Pos:     paramsVal.Pos(),
		}
	}

	for i := 0; iter.Next(); i++ {
		pv := iter.Value()
		field := fmt.Sprintf("parameters[%d]", i)

		var p ir.ParamSpec
		if p.Kind, err = requiredString(pv, "kind", field+".kind"); err != nil {
			return nil, err
		}
		if p.Name, err = requiredString(pv, "name", field+".name"); err != nil {
			return nil, err
		}
		if p.Description, err = optionalString(pv, "description"); err != nil {
			return nil, err
		}
		if p.Format, err = optionalString(pv, "format"); err != nil {
			return nil, err
		}

		mandatoryVal := pv.LookupPath(cue.ParsePath("mandatory"))
		if mandatoryVal.Exists() {
			if p.Mandatory, err = mandatoryVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		defaultVal := pv.LookupPath(cue.ParsePath("default_value"))
		if defaultVal.Exists() {
			if p.Default, err = decodeValue(defaultVal); err != nil {
				return nil, err
			}
		}

		validVal := pv.LookupPath(cue.ParsePath("valid_values"))
		if validVal.Exists() {
			valIter, err := validVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for valIter.Next() {
				s, err := scalarString(valIter.Value())
				if err != nil {
					return nil, err
				}
				p.ValidValues = append(p.ValidValues, s)
			}
		}

		ps = append(ps, p)
	}

	return ps, nil
}

// CompileSnippet parses a CUE value into a SnippetSpec.
func CompileSnippet(v cue.Value) (*ir.SnippetSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	id, err := idOf(v)
	if err != nil {
		return nil, err
	}
	tmpl, err := requiredString(v, "template", "template")
	if err != nil {
		return nil, err
	}
	return &ir.SnippetSpec{ID: id, Template: tmpl}, nil
}

// CompileDatasource parses a CUE value into a DatasourceSpec.
func CompileDatasource(v cue.Value) (*ir.DatasourceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.DatasourceSpec{}
	var err error
	if spec.ID, err = idOf(v); err != nil {
		return nil, err
	}
	if spec.Driver, err = requiredString(v, "driver", "driver"); err != nil {
		return nil, err
	}
	if spec.URL, err = optionalString(v, "url"); err != nil {
		return nil, err
	}
	if spec.BindStyle, err = optionalString(v, "bind_style"); err != nil {
		return nil, err
	}

	initVal := v.LookupPath(cue.ParsePath("init"))
	if initVal.Exists() {
		// A single string is accepted as one statement.
		if s, err := initVal.String(); err == nil {
			spec.Init = []string{s}
			return spec, nil
		}
		iter, err := initVal.List()
		if err != nil {
			return nil, &CompileError{
				Field:   "init",
				Message: "init must be a string or a list of strings",
				Pos:     initVal.Pos(),
			}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Init = append(spec.Init, s)
		}
	}

	return spec, nil
}

// idOf returns the id field, or the struct label when id is absent.
func idOf(v cue.Value) (string, error) {
	idVal := v.LookupPath(cue.ParsePath("id"))
	if idVal.Exists() {
		id, err := idVal.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		if id != "" {
			return id, nil
		}
	}

	sels := v.Path().Selectors()
	if len(sels) > 0 {
		if sel := sels[len(sels)-1]; sel.LabelType() == cue.StringLabel {
			return sel.Unquoted(), nil
		}
	}
	return "", &CompileError{
		Field:   "id",
		Message: "id is required",
		Pos:     v.Pos(),
	}
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// scalarString renders a string, number or bool as text. Allow-lists are
// compared as text, so `valid_values: [2023, 2024]` is accepted.
func scalarString(v cue.Value) (string, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case cue.BoolKind:
		b, _ := v.Bool()
		return fmt.Sprint(b), nil
	default:
		return "", &CompileError{
			Field:   "valid_values",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// decodeValue converts a concrete CUE value into plain Go values: nil, bool,
// int64, float64, string, []any and map[string]any.
func decodeValue(v cue.Value) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().Unquoted()] = item
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileDefinitions extracts every resource, snippet and datasource from a
// CUE instance laid out as:
//
//	resource:   [id=string]: {...}
//	snippet:    [id=string]: {...}
//	datasource: [id=string]: {...}
//
// Results are sorted by id. The first compile error is returned.
func CompileDefinitions(v cue.Value) (*ir.Definitions, error) {
	defs := &ir.Definitions{}
	err := eachField(v, ir.KindResource, func(fv cue.Value) error {
		spec, err := CompileResource(fv)
		if err != nil {
			return err
		}
		defs.Resources = append(defs.Resources, *spec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = eachField(v, ir.KindSnippet, func(fv cue.Value) error {
		spec, err := CompileSnippet(fv)
		if err != nil {
			return err
		}
		defs.Snippets = append(defs.Snippets, *spec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = eachField(v, ir.KindDatasource, func(fv cue.Value) error {
		spec, err := CompileDatasource(fv)
		if err != nil {
			return err
		}
		defs.Datasources = append(defs.Datasources, *spec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortDefinitions(defs)
	return defs, nil
}

func eachField(v cue.Value, kind string, fn func(cue.Value) error) error {
	kv := v.LookupPath(cue.MakePath(cue.Str(kind)))
	if !kv.Exists() {
		return nil
	}
	iter, err := kv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// SortDefinitions orders every list in defs by id.
func SortDefinitions(defs *ir.Definitions) {
	sort.SliceStable(defs.Resources, func(i, j int) bool { return defs.Resources[i].ID < defs.Resources[j].ID })
	sort.SliceStable(defs.Snippets, func(i, j int) bool { return defs.Snippets[i].ID < defs.Snippets[j].ID })
	sort.SliceStable(defs.Datasources, func(i, j int) bool { return defs.Datasources[i].ID < defs.Datasources[j].ID })
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: "cue", Message: firstErr.Error()}
}
