package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/ir"
)

func TestCompileText(t *testing.T) {
	dir := salesDir(t)

	stdout, _, err := execute(t, "compile", dir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ Compiled 2 resource(s), 1 snippet(s), 1 datasource(s)")
	assert.Contains(t, stdout, "monthly-sales:")
	assert.Contains(t, stdout, "public")
	assert.Contains(t, stdout, "regional-sales:")
	assert.Contains(t, stdout, "1 rule(s), authenticated")
	assert.Contains(t, stdout, "Catalog hash: ")
}

func TestCompileJSON(t *testing.T) {
	dir := salesDir(t)

	stdout, _, err := execute(t, "compile", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.SchemaVersion, resp.Data.SchemaVersion)
	assert.NotEmpty(t, resp.Data.CatalogHash)
	require.Len(t, resp.Data.Resources, 2)
	assert.Equal(t, "monthly-sales", resp.Data.Resources[0].ID)
	assert.Equal(t, "regional-sales", resp.Data.Resources[1].ID)
	assert.Len(t, resp.Data.Hashes, 2)
	assert.NotEqual(t, resp.Data.Hashes["monthly-sales"], resp.Data.Hashes["regional-sales"])
}

func TestCompileHashIsStable(t *testing.T) {
	dir := salesDir(t)

	first, _, err := execute(t, "compile", dir, "--format", "json")
	require.NoError(t, err)
	second, _, err := execute(t, "compile", dir, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileOutputFile(t *testing.T) {
	dir := salesDir(t)
	out := filepath.Join(t.TempDir(), "compiled.json")

	stdout, _, err := execute(t, "compile", dir, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote compiled definitions to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Resources, 2)
	assert.Len(t, result.Snippets, 1)
	assert.Len(t, result.Datasources, 1)
}

func TestCompileMissingDirectory(t *testing.T) {
	stdout, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCompileEmptyDirectory(t *testing.T) {
	stdout, _, err := execute(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeNoFiles)
}

func TestCompileUnknownKind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yml", "kind: dashboard\nid: x\n")

	stdout, _, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Compilation failed")
	assert.Contains(t, stdout, ErrCodeInvalidDocument)
}

func TestCompileCollectsEveryError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", "kind: resource\nid: a\n")
	writeFile(t, dir, "b.yml", "kind: snippet\nid: b\n")

	stdout, _, err := execute(t, "compile", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Len(t, resp.Data, 2)
}

func TestCompileValidationErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "r.yml", `
kind: resource
id: broken
datasource: nowhere
query: SELECT 1
`)

	stdout, _, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "unknown datasource")
}

func TestCompileCUE(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "resources.cue", `package resources

snippet: "sales-data": template: "SELECT month, amount FROM sales"

resource: "monthly-sales": {
	query: "SELECT * FROM ({{ template \"sales-data\" . }}) AS s"
	authentication: requiresAuthentication: false
}
`)

	stdout, _, err := execute(t, "compile", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Resources, 1)
	assert.Equal(t, "monthly-sales", resp.Data.Resources[0].ID)
	assert.False(t, resp.Data.Resources[0].RequiresAuthentication)
	assert.Equal(t, "resources.cue", resp.Data.Resources[0].Source)
	require.Len(t, resp.Data.Snippets, 1)
}

func TestCalculateStats(t *testing.T) {
	defs := ir.Definitions{
		Resources: []ir.ResourceSpec{
			{ID: "a", Parameters: []ir.ParamSpec{{Name: "x"}, {Name: "y"}}},
			{ID: "b", Authorization: []ir.AuthzRule{{ID: "r"}}},
		},
		Snippets:    []ir.SnippetSpec{{ID: "s"}},
		Datasources: []ir.DatasourceSpec{{ID: "d"}, {ID: "e"}},
	}

	stats := calculateStats(defs)
	assert.Equal(t, CompilationStats{
		ResourceCount:   2,
		SnippetCount:    1,
		DatasourceCount: 2,
		ParameterCount:  2,
		RuleCount:       1,
	}, stats)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"yaml", ErrCodeInvalidDocument},
		{"kind", ErrCodeInvalidDocument},
		{"cue", ErrCodeBuildFailed},
		{"id", "E201"},
		{"query", "E202"},
		{"template", "E209"},
		{"driver", "E210"},
		{"authorization[0].id", "E205"},
		{"parameters[1].kind", "E207"},
		{"valid_values", "E207"},
		{"summary", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
