package params

import (
	"fmt"
	"strings"

	"github.com/imgaoyue/squealy/internal/ir"
)

// Declared parameter kinds.
const (
	KindString   = "String"
	KindNumber   = "Number"
	KindDate     = "Date"
	KindDateTime = "DateTime"
)

// Kinds lists the accepted kind names.
var Kinds = []string{KindString, KindNumber, KindDate, KindDateTime}

// Parameter is a typed request parameter.
//
// Implementations are immutable and safe for concurrent use.
type Parameter interface {
	// Name is the request key this parameter reads.
	Name() string

	// Normalize converts a raw request value into a typed value.
	// Failures are always *ParamError.
	Normalize(raw any) (any, error)

	// Doc returns read-only metadata for documentation generation.
	Doc() Doc
}

// Doc is documentation metadata of a parameter.
type Doc struct {
	Kind        string
	Name        string
	Description string
	Mandatory   bool
	Default     any
	ValidValues []string
	Type        string // OpenAPI type: "string" or "number"
	Format      string // OpenAPI format: "date", "date-time" or the parse format
}

// New builds a Parameter from its declaration. Unknown kinds, options that
// do not apply to the kind, and defaults that fail to normalize are
// configuration errors.
func New(spec ir.ParamSpec, clock Clock) (Parameter, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("parameter name is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	b := base{
		name:        spec.Name,
		description: spec.Description,
		mandatory:   spec.Mandatory,
		def:         spec.Default,
	}

	var p Parameter
	switch spec.Kind {
	case KindString:
		if spec.Format != "" {
			return nil, fmt.Errorf("parameter %q: format is not supported for kind %s", spec.Name, spec.Kind)
		}
		p = &String{base: b, validValues: spec.ValidValues}
	case KindNumber:
		if spec.Format != "" {
			return nil, fmt.Errorf("parameter %q: format is not supported for kind %s", spec.Name, spec.Kind)
		}
		if len(spec.ValidValues) > 0 {
			return nil, fmt.Errorf("parameter %q: valid_values is only supported for kind String", spec.Name)
		}
		p = &Number{base: b}
	case KindDate:
		if len(spec.ValidValues) > 0 {
			return nil, fmt.Errorf("parameter %q: valid_values is only supported for kind String", spec.Name)
		}
		p = &Date{base: b, format: spec.Format, clock: clock}
	case KindDateTime, "Datetime":
		if len(spec.ValidValues) > 0 {
			return nil, fmt.Errorf("parameter %q: valid_values is only supported for kind String", spec.Name)
		}
		p = &DateTime{base: b, format: spec.Format, clock: clock}
	default:
		return nil, fmt.Errorf("parameter %q: unknown kind %q (want one of %s)", spec.Name, spec.Kind, strings.Join(Kinds, ", "))
	}

	if !isBlank(spec.Default) {
		if _, err := p.Normalize(nil); err != nil {
			return nil, fmt.Errorf("parameter %q: invalid default_value: %w", spec.Name, err)
		}
	}
	return p, nil
}

// base holds the attributes shared by every variant.
type base struct {
	name        string
	description string
	mandatory   bool
	def         any
}

func (b base) Name() string { return b.name }

// resolve applies default and mandatory handling.
// It returns ok=false when the value is absent and optional.
func (b base) resolve(raw any) (any, bool, error) {
	if !isBlank(raw) {
		return raw, true, nil
	}
	if !isBlank(b.def) {
		return b.def, true, nil
	}
	if b.mandatory {
		return nil, false, missing(b.name)
	}
	return nil, false, nil
}

func (b base) doc(kind, typ, format string) Doc {
	return Doc{
		Kind:        kind,
		Name:        b.name,
		Description: b.description,
		Mandatory:   b.mandatory,
		Default:     b.def,
		Type:        typ,
		Format:      format,
	}
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

// text renders a raw value as request text.
func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
