package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const salesYAML = `
kind: datasource
id: warehouse
driver: sqlite
url: ":memory:"
init:
  - CREATE TABLE sales (month TEXT, region TEXT, amount INTEGER)
  - INSERT INTO sales VALUES ('jan', 'north', 15), ('jan', 'south', 36), ('feb', 'north', 29), ('feb', 'south', 78)
---
kind: snippet
id: sales-data
template: SELECT month, region, amount FROM sales
---
kind: resource
id: monthly-sales
datasource: warehouse
authentication:
  requiresAuthentication: false
query: |
  SELECT month, SUM(amount) AS sales FROM ({{ template "sales-data" . }}) AS s
  {{ if .params.month }}WHERE month = {{ .params.month }}{{ end }}
  GROUP BY month ORDER BY month
parameters:
  - kind: String
    name: month
    valid_values: [jan, feb]
---
kind: resource
id: regional-sales
datasource: warehouse
formatter: JsonFormatter
authorization:
  - id: is-analyst
    query: SELECT 1 WHERE {{ .user.role }} = 'analyst'
query: |
  SELECT region, SUM(amount) AS total FROM ({{ template "sales-data" . }}) AS s
  WHERE region IN {{ .user.regions | inclause }}
  GROUP BY region ORDER BY region
`

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// salesDir returns a resources directory holding the sales definitions.
func salesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "sales.yml", salesYAML)
	return dir
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
