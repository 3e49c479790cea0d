package compiler

import (
	"fmt"
	"strings"

	"github.com/imgaoyue/squealy/internal/formatter"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/querysql"
	"github.com/imgaoyue/squealy/internal/store"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	// ResourceSpec errors (E201-E209)
	ErrIDRequired       = "E201" // id is required
	ErrQueryRequired    = "E202" // query is required
	ErrInvalidPath      = "E203" // path must start with "/"
	ErrUnknownFormatter = "E204" // formatter name not registered
	ErrInvalidAuthzRule = "E205" // authorization rule missing id or query
	ErrDuplicateName    = "E206" // duplicate id, path, rule or parameter name
	ErrInvalidParameter = "E207" // unknown kind or invalid parameter options
	ErrTemplateSyntax   = "E208" // query or snippet does not parse
	ErrTemplateRequired = "E209" // snippet template is required

	// DatasourceSpec errors (E210-E219)
	ErrInvalidDriver    = "E210" // unknown driver
	ErrInvalidBindStyle = "E211" // unknown or unsupported bind style

	// Cross-reference errors (E220-E229)
	ErrUnknownDatasource = "E220" // resource references an undefined datasource
	ErrUnknownSnippet    = "E221" // template includes an undefined snippet
	ErrSnippetCycle      = "E222" // snippets include each other
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports ResourceSpec, SnippetSpec, DatasourceSpec and Definitions.
func Validate(v any) []ValidationError {
	switch ir := v.(type) {
	case *ir.ResourceSpec:
		return validateResource(ir)
	case ir.ResourceSpec:
		return validateResource(&ir)
	case *ir.SnippetSpec:
		return validateSnippet(ir)
	case ir.SnippetSpec:
		return validateSnippet(&ir)
	case *ir.DatasourceSpec:
		return validateDatasource(ir)
	case ir.DatasourceSpec:
		return validateDatasource(&ir)
	case *ir.Definitions:
		return validateDefinitions(ir)
	case ir.Definitions:
		return validateDefinitions(&ir)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateResource validates one resource on its own.
func validateResource(spec *ir.ResourceSpec) []ValidationError {
	var errs []ValidationError

	// E201: id is required
	if strings.TrimSpace(spec.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "id is required and must be non-empty",
			Code:    ErrIDRequired,
		})
	}

	// E202: query is required
	if strings.TrimSpace(spec.Query) == "" {
		errs = append(errs, ValidationError{
			Field:   "query",
			Message: "query is required and must be non-empty",
			Code:    ErrQueryRequired,
		})
	} else if _, err := querysql.References(spec.Query); err != nil {
		errs = append(errs, ValidationError{
			Field:   "query",
			Message: err.Error(),
			Code:    ErrTemplateSyntax,
		})
	}

	// E203: path must be absolute
	if spec.Path != "" && (!strings.HasPrefix(spec.Path, "/") || strings.ContainsAny(spec.Path, " \t?#")) {
		errs = append(errs, ValidationError{
			Field:   "path",
			Message: fmt.Sprintf("invalid path %q: must start with / and contain no spaces, ? or #", spec.Path),
			Code:    ErrInvalidPath,
		})
	}

	// E204: formatter must be registered
	if _, err := formatter.New(spec.Formatter); err != nil {
		errs = append(errs, ValidationError{
			Field:   "formatter",
			Message: err.Error(),
			Code:    ErrUnknownFormatter,
		})
	}

	ruleIDs := make(map[string]bool)
	for i, rule := range spec.Authorization {
		field := fmt.Sprintf("authorization[%d]", i)

		// E205: rule needs both id and query
		if strings.TrimSpace(rule.ID) == "" || strings.TrimSpace(rule.Query) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "authorization rule requires id and query",
				Code:    ErrInvalidAuthzRule,
			})
			continue
		}

		// E206: duplicate rule id
		if ruleIDs[rule.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate authorization rule id: %q", rule.ID),
				Code:    ErrDuplicateName,
			})
		}
		ruleIDs[rule.ID] = true

		if _, err := querysql.References(rule.Query); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".query",
				Message: err.Error(),
				Code:    ErrTemplateSyntax,
			})
		}
	}

	paramNames := make(map[string]bool)
	for i, p := range spec.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)

		// E207: closed kind registry and per-kind options
		if _, err := params.New(p, params.SystemClock{}); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrInvalidParameter,
			})
		}

		// E206: duplicate parameter name
		if p.Name != "" && paramNames[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate parameter name: %q", p.Name),
				Code:    ErrDuplicateName,
			})
		}
		paramNames[p.Name] = true
	}

	return errs
}

// validateSnippet validates one snippet on its own.
func validateSnippet(spec *ir.SnippetSpec) []ValidationError {
	var errs []ValidationError

	// E201: id is required
	if strings.TrimSpace(spec.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "id is required and must be non-empty",
			Code:    ErrIDRequired,
		})
	}

	// E209: template is required
	if strings.TrimSpace(spec.Template) == "" {
		errs = append(errs, ValidationError{
			Field:   "template",
			Message: "template is required and must be non-empty",
			Code:    ErrTemplateRequired,
		})
	} else if _, err := querysql.References(spec.Template); err != nil {
		errs = append(errs, ValidationError{
			Field:   "template",
			Message: err.Error(),
			Code:    ErrTemplateSyntax,
		})
	}

	return errs
}

// validateDatasource validates one datasource on its own.
func validateDatasource(spec *ir.DatasourceSpec) []ValidationError {
	var errs []ValidationError

	// E201: id is required
	if strings.TrimSpace(spec.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   "id",
			Message: "id is required and must be non-empty",
			Code:    ErrIDRequired,
		})
	}

	// E210: driver must be known
	if _, err := store.NormalizeDriver(spec.Driver); err != nil {
		errs = append(errs, ValidationError{
			Field:   "driver",
			Message: err.Error(),
			Code:    ErrInvalidDriver,
		})
		return errs
	}

	// E211: bind style must be known and supported by the driver
	if _, err := store.ResolveBindStyle(spec.Driver, spec.BindStyle); err != nil {
		errs = append(errs, ValidationError{
			Field:   "bind_style",
			Message: err.Error(),
			Code:    ErrInvalidBindStyle,
		})
	}

	return errs
}

// validateDefinitions validates every object plus the references between
// them: unique ids and paths, known datasources, known and acyclic snippets.
func validateDefinitions(defs *ir.Definitions) []ValidationError {
	var errs []ValidationError

	prefix := func(kind, id string, vs []ValidationError) []ValidationError {
		for i := range vs {
			vs[i].Field = fmt.Sprintf("%s %q: %s", kind, id, vs[i].Field)
		}
		return vs
	}

	datasources := make(map[string]bool)
	for _, ds := range defs.Datasources {
		errs = append(errs, prefix(ir.KindDatasource, ds.ID, validateDatasource(&ds))...)
		if datasources[ds.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s %q: id", ir.KindDatasource, ds.ID),
				Message: "duplicate datasource id",
				Code:    ErrDuplicateName,
			})
		}
		datasources[ds.ID] = true
	}

	snippets := make(map[string]bool)
	for _, sn := range defs.Snippets {
		errs = append(errs, prefix(ir.KindSnippet, sn.ID, validateSnippet(&sn))...)
		if snippets[sn.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s %q: id", ir.KindSnippet, sn.ID),
				Message: "duplicate snippet id",
				Code:    ErrDuplicateName,
			})
		}
		snippets[sn.ID] = true
	}

	checkRefs := func(field, text string) {
		refs, err := querysql.References(text)
		if err != nil {
			return // reported as E208 by the per-object check
		}
		for _, ref := range refs {
			if !snippets[ref] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("unknown snippet %q", ref),
					Code:    ErrUnknownSnippet,
				})
			}
		}
	}

	ids := make(map[string]bool)
	paths := make(map[string]string)
	for _, r := range defs.Resources {
		field := fmt.Sprintf("%s %q", ir.KindResource, r.ID)
		errs = append(errs, prefix(ir.KindResource, r.ID, validateResource(&r))...)

		if ids[r.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ": id",
				Message: "duplicate resource id",
				Code:    ErrDuplicateName,
			})
		}
		ids[r.ID] = true

		path := r.Path
		if path == "" {
			path = "/" + r.ID
		}
		if other, ok := paths[path]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ": path",
				Message: fmt.Sprintf("path %q already used by resource %q", path, other),
				Code:    ErrDuplicateName,
			})
		} else {
			paths[path] = r.ID
		}

		// E220: datasource must be defined, unless it is the default
		if r.Datasource != "" && r.Datasource != ir.DefaultEngineName && !datasources[r.Datasource] {
			errs = append(errs, ValidationError{
				Field:   field + ": datasource",
				Message: fmt.Sprintf("unknown datasource %q", r.Datasource),
				Code:    ErrUnknownDatasource,
			})
		}

		checkRefs(field+": query", r.Query)
		for i, rule := range r.Authorization {
			checkRefs(fmt.Sprintf("%s: authorization[%d].query", field, i), rule.Query)
		}
	}

	for _, sn := range defs.Snippets {
		checkRefs(fmt.Sprintf("%s %q: template", ir.KindSnippet, sn.ID), sn.Template)
	}

	// E222: snippet cycles
	for _, c := range AnalyzeSnippetCycles(defs.Snippets) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("%s %q", ir.KindSnippet, c.Path[0]),
			Message: c.Message,
			Code:    ErrSnippetCycle,
		})
	}

	return errs
}
