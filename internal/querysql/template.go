package querysql

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/queryir"
)

// Set is a collection of snippets that templates compiled from it may
// include with {{ template "snippet-id" . }}.
type Set struct {
	base  *template.Template
	clock params.Clock
}

// Option configures a Set.
type Option func(*Set)

// WithClock sets the clock used by the today and daterange helpers.
func WithClock(c params.Clock) Option {
	return func(s *Set) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSet parses and rewrites snippets. Duplicate ids and parse failures are
// configuration errors.
func NewSet(snippets []ir.SnippetSpec, opts ...Option) (*Set, error) {
	s := &Set{
		base:  template.New("").Funcs(parseFuncs).Option("missingkey=default"),
		clock: params.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	seen := make(map[string]bool, len(snippets))
	for _, sn := range snippets {
		if sn.ID == "" {
			return nil, &ConfigError{Template: sn.ID, Err: errors.New("snippet id is required")}
		}
		if seen[sn.ID] {
			return nil, &ConfigError{Template: sn.ID, Err: errors.New("duplicate snippet id")}
		}
		seen[sn.ID] = true
		if _, err := s.base.New(sn.ID).Parse(sn.Template); err != nil {
			return nil, &ConfigError{Template: sn.ID, Err: err}
		}
	}
	for _, t := range s.base.Templates() {
		if t.Tree != nil {
			rewriteTree(t.Tree)
		}
	}
	return s, nil
}

// Compile parses text as a template named name. Snippet references are
// resolved now: a reference to an unknown snippet is a configuration error.
func (s *Set) Compile(name, text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ConfigError{Template: name, Err: errors.New("query is empty")}
	}
	root, err := s.base.Clone()
	if err != nil {
		return nil, &ConfigError{Template: name, Err: err}
	}
	before := make(map[*parse.Tree]bool)
	for _, t := range root.Templates() {
		before[t.Tree] = true
	}
	if _, err := root.New(name).Parse(text); err != nil {
		return nil, &ConfigError{Template: name, Err: err}
	}
	for _, t := range root.Templates() {
		if t.Tree != nil && !before[t.Tree] {
			rewriteTree(t.Tree)
		}
	}
	for _, t := range root.Templates() {
		if t.Tree == nil {
			continue
		}
		for _, ref := range templateRefs(t.Tree) {
			if target := root.Lookup(ref); target == nil || target.Tree == nil {
				return nil, &ConfigError{Template: name, Err: fmt.Errorf("unknown snippet %q", ref)}
			}
		}
	}
	return &Template{name: name, text: text, tmpl: root, clock: s.clock}, nil
}

// Template is a compiled SQL template.
type Template struct {
	name  string
	text  string
	tmpl  *template.Template
	clock params.Clock
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Text returns the template source.
func (t *Template) Text() string { return t.text }

// Render executes the template against data and returns the final SQL with
// bindings shaped for style. Rendering is deterministic: the same data and
// style always yield identical SQL and equal bindings.
func (t *Template) Render(data any, style queryir.BindStyle) (queryir.Query, error) {
	if err := style.Validate(); err != nil {
		return queryir.Query{}, &ConfigError{Template: t.name, Err: err}
	}
	b := newBinder(style)
	tmpl, err := t.tmpl.Clone()
	if err != nil {
		return queryir.Query{}, &ConfigError{Template: t.name, Err: err}
	}
	tmpl.Funcs(renderFuncs(b, t.clock))

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, t.name, data); err != nil {
		return queryir.Query{}, &RenderError{Template: t.name, Err: err}
	}
	return queryir.Query{SQL: strings.TrimSpace(buf.String()), Args: b.bindings()}, nil
}

// Render compiles text without snippets and renders it once.
func Render(text string, data any, style queryir.BindStyle) (queryir.Query, error) {
	set, err := NewSet(nil)
	if err != nil {
		return queryir.Query{}, err
	}
	t, err := set.Compile("query", text)
	if err != nil {
		return queryir.Query{}, err
	}
	return t.Render(data, style)
}

// References returns the sorted snippet ids text includes. Templates defined
// inline with {{ define }} are not reported.
func References(text string) ([]string, error) {
	t, err := template.New("").Funcs(parseFuncs).Parse(text)
	if err != nil {
		return nil, err
	}
	defined := make(map[string]bool)
	for _, d := range t.Templates() {
		if d.Name() != "" {
			defined[d.Name()] = true
		}
	}
	var refs []string
	seen := make(map[string]bool)
	for _, d := range t.Templates() {
		if d.Tree == nil {
			continue
		}
		for _, ref := range templateRefs(d.Tree) {
			if !defined[ref] && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	sort.Strings(refs)
	return refs, nil
}
