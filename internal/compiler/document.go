package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"

	"github.com/imgaoyue/squealy/internal/ir"
)

// Document is one object from a YAML definition file, encoded as a CUE value.
type Document struct {
	Kind   string    // "resource", "snippet" or "datasource"
	Source string    // file the document came from
	Line   int       // line of the document's first key
	Value  cue.Value // the whole document
}

// ErrUnknownKind is returned for documents whose kind is not one of the
// definition kinds.
var ErrUnknownKind = errors.New("unknown object kind")

// ParseYAML splits a multi-document YAML file into documents. Each document
// must be a mapping with a `kind` (or `type`) field. Empty documents are
// skipped.
func ParseYAML(ctx *cue.Context, filename string, data []byte) ([]Document, error) {
	var docs []Document

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &CompileError{Field: "yaml", Message: fmt.Sprintf("%s: %v", filename, err)}
		}
		if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
			continue
		}
		body := node.Content[0]
		if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, &CompileError{
				Field:   "yaml",
				Message: fmt.Sprintf("%s:%d: definition must be a mapping", filename, body.Line),
			}
		}

		keepScalarText(body)
		var raw map[string]any
		if err := body.Decode(&raw); err != nil {
			return nil, &CompileError{Field: "yaml", Message: fmt.Sprintf("%s:%d: %v", filename, body.Line, err)}
		}

		kind, err := documentKind(raw)
		if err != nil {
			return nil, &CompileError{
				Field:   "kind",
				Message: fmt.Sprintf("%s:%d: %v", filename, body.Line, err),
			}
		}

		v := ctx.Encode(raw)
		if err := v.Err(); err != nil {
			return nil, &CompileError{Field: "yaml", Message: fmt.Sprintf("%s:%d: %v", filename, body.Line, err)}
		}
		docs = append(docs, Document{Kind: kind, Source: filename, Line: body.Line, Value: v})
	}

	return docs, nil
}

// keepScalarText retags timestamp scalars as strings so values such as
// 2024-01-01 keep their source text. Date parameters parse them against
// their own format.
func keepScalarText(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		keepScalarText(c)
	}
}

// documentKind reads `kind`, falling back to `type`.
func documentKind(raw map[string]any) (string, error) {
	k, ok := raw["kind"]
	if !ok {
		k, ok = raw["type"]
	}
	if !ok {
		return "", fmt.Errorf("%w: kind is required", ErrUnknownKind)
	}
	s, _ := k.(string)
	switch kind := strings.ToLower(strings.TrimSpace(s)); kind {
	case ir.KindResource, ir.KindSnippet, ir.KindDatasource:
		return kind, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownKind, fmt.Sprint(k))
	}
}

// CompileDocument compiles doc and appends the result to defs.
func CompileDocument(doc Document, defs *ir.Definitions) error {
	switch doc.Kind {
	case ir.KindResource:
		spec, err := CompileResource(doc.Value)
		if err != nil {
			return err
		}
		spec.Source = doc.Source
		defs.Resources = append(defs.Resources, *spec)
	case ir.KindSnippet:
		spec, err := CompileSnippet(doc.Value)
		if err != nil {
			return err
		}
		spec.Source = doc.Source
		defs.Snippets = append(defs.Snippets, *spec)
	case ir.KindDatasource:
		spec, err := CompileDatasource(doc.Value)
		if err != nil {
			return err
		}
		spec.Source = doc.Source
		defs.Datasources = append(defs.Datasources, *spec)
	default:
		return &CompileError{Field: "kind", Message: fmt.Sprintf("%v %q", ErrUnknownKind, doc.Kind)}
	}
	return nil
}
