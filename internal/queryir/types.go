package queryir

import (
	"fmt"
	"sort"
	"strings"
)

// BindStyle is a placeholder convention declared by an engine.
type BindStyle string

const (
	// StyleQmark renders "?" and binds positionally.
	StyleQmark BindStyle = "qmark"
	// StyleNumeric renders ":1", ":2", ... and binds positionally.
	StyleNumeric BindStyle = "numeric"
	// StyleFormat renders "%s" and binds positionally.
	StyleFormat BindStyle = "format"
	// StyleNamed renders ":name_1" and binds by name.
	StyleNamed BindStyle = "named"
	// StylePyformat renders "%(name_1)s" and binds by name.
	StylePyformat BindStyle = "pyformat"
	// StyleDollar renders "$1", "$2", ... and binds positionally (PostgreSQL).
	StyleDollar BindStyle = "dollar"
)

// Styles lists every supported bind style.
var Styles = []BindStyle{StyleQmark, StyleNumeric, StyleFormat, StyleNamed, StylePyformat, StyleDollar}

// ParseBindStyle converts a style name to a BindStyle.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseBindStyle(s string) (BindStyle, error) {
	style := BindStyle(strings.ToLower(strings.TrimSpace(s)))
	if err := style.Validate(); err != nil {
		return "", err
	}
	return style, nil
}

// Validate reports whether s is a supported style.
func (s BindStyle) Validate() error {
	for _, known := range Styles {
		if s == known {
			return nil
		}
	}
	names := make([]string, len(Styles))
	for i, known := range Styles {
		names[i] = string(known)
	}
	sort.Strings(names)
	return fmt.Errorf("unknown bind style %q (want one of %s)", string(s), strings.Join(names, ", "))
}

// IsNamed reports whether the style binds by name.
func (s BindStyle) IsNamed() bool {
	return s == StyleNamed || s == StylePyformat
}

// Placeholder returns the marker for the n-th bound value (1-based) with the
// given bind name. Positional styles ignore name.
func (s BindStyle) Placeholder(n int, name string) string {
	switch s {
	case StyleQmark:
		return "?"
	case StyleNumeric:
		return fmt.Sprintf(":%d", n)
	case StyleFormat:
		return "%s"
	case StyleNamed:
		return ":" + name
	case StylePyformat:
		return "%(" + name + ")s"
	case StyleDollar:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

// Bindings is the bound-parameter collection of a rendered query.
//
// This is a sealed interface - only Positional and Named implement it.
type Bindings interface {
	bindingsNode()

	// Len returns the number of bound values.
	Len() int
}

// Positional holds values in placeholder order.
type Positional []any

func (Positional) bindingsNode() {}

// Len returns the number of bound values.
func (p Positional) Len() int { return len(p) }

// Named maps bind names to values.
type Named map[string]any

func (Named) bindingsNode() {}

// Len returns the number of bound values.
func (n Named) Len() int { return len(n) }

// Names returns the bind names in sorted order.
func (n Named) Names() []string {
	names := make([]string, 0, len(n))
	for k := range n {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Query is final SQL text plus its bound parameters.
type Query struct {
	SQL  string
	Args Bindings
}
