package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/compiler"
	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/resource"
)

func TestFindDefinitionFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "nested/c.yml", "")
	writeFile(t, dir, "root.cue", "")
	writeFile(t, dir, "nested/ignored.cue", "")
	writeFile(t, dir, ".hidden.yml", "")
	writeFile(t, dir, ".git/config.yml", "")
	writeFile(t, dir, "README.md", "")

	files, err := FindDefinitionFiles(dir)
	require.NoError(t, err)

	rel := make([]string, len(files))
	for i, f := range files {
		rel[i], _ = filepath.Rel(dir, f)
	}
	assert.Equal(t, []string{"a.yaml", "b.yml", filepath.Join("nested", "c.yml"), "root.cue"}, rel)
}

func TestLoadDefinitions(t *testing.T) {
	result, errs := LoadDefinitions(salesDir(t), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, []string{"sales.yml"}, result.Files)
	require.Len(t, result.Definitions.Resources, 2)
	assert.Equal(t, "monthly-sales", result.Definitions.Resources[0].ID)
	assert.Equal(t, "sales.yml", result.Definitions.Resources[0].Source)
	assert.Equal(t, "warehouse", result.Definitions.Datasources[0].ID)
}

func TestLoadDefinitionsModes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", "kind: resource\nid: a\n")
	writeFile(t, dir, "b.yml", "kind: resource\nid: b\n")

	_, errs := LoadDefinitions(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)

	_, errs = LoadDefinitions(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)

	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, compiler.ErrQueryRequired, le.Code)
	assert.Contains(t, le.Message, "query is required")
}

func TestLoadDefinitionsOnlySnippets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.yml", "kind: snippet\nid: s\ntemplate: SELECT 1\n")

	result, errs := LoadDefinitions(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no resources found")
}

func TestLoadValidated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "r.yml", `
kind: resource
id: r
datasource: reporting
query: SELECT 1
`)

	_, err := LoadValidated(dir, nil, LoadModeCollectAll)
	var de *DefinitionsError
	require.ErrorAs(t, err, &de)
	require.Len(t, de.Validation, 1)
	assert.Equal(t, compiler.ErrUnknownDatasource, errorCode(err))
	assert.Contains(t, err.Error(), "invalid definitions: ")

	cfg := &config.Config{Datasources: []config.DatasourceConfig{{ID: "reporting", Driver: "sqlite"}}}
	defs, err := LoadValidated(dir, cfg, LoadModeCollectAll)
	require.NoError(t, err)
	require.Len(t, defs.Datasources, 1)
	assert.Equal(t, "config", defs.Datasources[0].Source)
}

func TestBuildCatalogWithoutDatasources(t *testing.T) {
	defs := &ir.Definitions{Resources: []ir.ResourceSpec{{ID: "r", Query: "SELECT 1"}}}

	_, err := BuildCatalog(context.Background(), defs)
	require.Error(t, err)
	assert.Equal(t, ErrCodeEngine, errorCode(err))
}

func TestOpenCatalog(t *testing.T) {
	c, err := OpenCatalog(context.Background(), salesDir(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.Equal(t, 2, c.Len())
	doc, err := c.Process(context.Background(), "monthly-sales", nil, map[string]any{"month": "feb"})
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestOpenCatalogKeepsDateDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "since.yml", `
kind: datasource
id: local
driver: sqlite
url: ":memory:"
---
kind: resource
id: since
datasource: local
authentication:
  requiresAuthentication: false
query: SELECT {{ .params.since }} AS since, {{ .params.label }} AS label
parameters:
  - kind: Date
    name: since
    format: YYYY-MM-DD
    default_value: 2024-01-01
  - kind: String
    name: label
    default_value: 2024-01-01
    valid_values: [2024-01-01, 2024-02-01]
`)

	c, err := OpenCatalog(context.Background(), dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	doc, err := c.Process(context.Background(), "since", nil, nil)
	require.NoError(t, err)
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["since","label"],"data":[["2024-01-01","2024-01-01"]]}`, string(out))

	_, err = c.Process(context.Background(), "since", nil, map[string]any{"label": "2024-02-01"})
	require.NoError(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"load error", &LoadError{Code: ErrCodeNoFiles}, ErrCodeNoFiles},
		{"wrapped", errors.Join(errors.New("x"), &LoadError{Code: ErrCodeConfig}), ErrCodeConfig},
		{"definitions load", &DefinitionsError{Load: []error{&LoadError{Code: ErrCodeInvalidDocument}}}, ErrCodeInvalidDocument},
		{"definitions validation", &DefinitionsError{Validation: []compiler.ValidationError{{Code: compiler.ErrSnippetCycle}}}, compiler.ErrSnippetCycle},
		{"unknown resource", fmt.Errorf("%w: %q", resource.ErrNotFound, "x"), ErrCodeNotFound},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestConvertCompileError(t *testing.T) {
	le := convertCompileError(&compiler.CompileError{Field: "query", Message: "query is required"}, "r.yml:3")
	assert.Equal(t, compiler.ErrQueryRequired, le.Code)
	assert.Equal(t, "r.yml:3: query: query is required", le.Message)

	le = convertCompileError(&compiler.CompileError{Field: "kind", Message: `unknown object kind "view"`}, "r.yml")
	assert.Equal(t, ErrCodeInvalidDocument, le.Code)
	assert.Equal(t, `unknown object kind "view"`, le.Message)

	le = convertCompileError(errors.New("boom"), "cue")
	assert.Equal(t, ErrCodeGeneric, le.Code)
	assert.Equal(t, "cue: boom", le.Message)
}
