package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/compiler"
)

func TestValidateValidDefinitions(t *testing.T) {
	dir := salesDir(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ All definitions valid (2 resource(s), 1 snippet(s))")
}

func TestValidateValidDefinitionsJSON(t *testing.T) {
	dir := salesDir(t)

	stdout, _, err := execute(t, "validate", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Resources)
	assert.Equal(t, 1, resp.Data.Snippets)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	stdout, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error ["+ErrCodeNotFound+"]")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateReferenceErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code string
		msg  string
	}{
		{
			name: "unknown datasource",
			yaml: `
kind: resource
id: r
datasource: nowhere
query: SELECT 1
`,
			code: compiler.ErrUnknownDatasource,
			msg:  `unknown datasource "nowhere"`,
		},
		{
			name: "unknown snippet",
			yaml: `
kind: resource
id: r
query: '{{ template "missing" . }}'
`,
			code: compiler.ErrUnknownSnippet,
			msg:  "missing",
		},
		{
			name: "snippet cycle",
			yaml: `
kind: snippet
id: a
template: '{{ template "b" . }}'
---
kind: snippet
id: b
template: '{{ template "a" . }}'
---
kind: resource
id: r
query: '{{ template "a" . }}'
`,
			code: compiler.ErrSnippetCycle,
			msg:  "a",
		},
		{
			name: "unknown formatter",
			yaml: `
kind: resource
id: r
formatter: XmlFormatter
query: SELECT 1
`,
			code: compiler.ErrUnknownFormatter,
			msg:  "XmlFormatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "defs.yml", tt.yaml)

			stdout, _, err := execute(t, "validate", dir)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, stdout, "✗ Validation failed")
			assert.Contains(t, stdout, tt.code)
			assert.Contains(t, stdout, tt.msg)
		})
	}
}

func TestValidateInvalidDefinitionsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defs.yml", `
kind: resource
id: r
datasource: nowhere
query: SELECT 1
`)

	stdout, _, err := execute(t, "validate", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownDatasource, resp.Error.Code)
}

func TestValidateLoadErrorsSkipCrossReferences(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yml", `
kind: resource
id: r
query: '{{ template "shared" . }}'
`)
	// The snippet fails to compile, so the reference above must not be
	// reported on top of it.
	writeFile(t, dir, "b.yml", "kind: snippet\nid: shared\n")

	stdout, _, err := execute(t, "validate", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "load", resp.Data.Errors[0].Field)
	assert.Equal(t, compiler.ErrTemplateRequired, resp.Data.Errors[0].Code)
}

func TestValidateWithConfigDatasources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "r.yml", `
kind: resource
id: r
datasource: reporting
query: SELECT 1
`)
	cfgPath := writeFile(t, t.TempDir(), "squealy.yml", `
datasources:
  - id: reporting
    driver: sqlite
`)

	_, _, err := execute(t, "validate", dir)
	require.Error(t, err, "datasource is only declared in the config file")

	stdout, _, err := execute(t, "validate", dir, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ All definitions valid (1 resource(s), 0 snippet(s))")
}

func TestValidateDatasourceDeclaredTwice(t *testing.T) {
	dir := salesDir(t)
	cfgPath := writeFile(t, t.TempDir(), "squealy.yml", `
datasources:
  - id: warehouse
    driver: sqlite
`)

	stdout, _, err := execute(t, "validate", dir, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeConfig)
	assert.Contains(t, stdout, "declared in both the config file and")
}

func TestValidateBadConfig(t *testing.T) {
	dir := salesDir(t)

	stdout, _, err := execute(t, "validate", dir, "--config", filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error ["+ErrCodeConfig+"]")
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := salesDir(t)

	_, stderr, err := execute(t, "validate", dir, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Found 1 definition file(s)")
	assert.Contains(t, stderr, "sales.yml")
	assert.Contains(t, stderr, "Validating resource: monthly-sales")
}

func TestLoadValidationError(t *testing.T) {
	v := loadValidationError(&LoadError{Code: ErrCodeInvalidDocument, Message: "bad kind"})
	assert.Equal(t, compiler.ValidationError{Field: "load", Message: "bad kind", Code: ErrCodeInvalidDocument}, v)

	v = loadValidationError(assert.AnError)
	assert.Equal(t, ErrCodeGeneric, v.Code)
	assert.Equal(t, assert.AnError.Error(), v.Message)
}
