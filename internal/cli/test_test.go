package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const januaryScenario = `
name: january
documents: |
  kind: resource
  id: monthly-sales
  authentication:
    requiresAuthentication: false
  query: >
    SELECT month, SUM(amount) AS sales FROM sales
    {{ if .params.month }}WHERE month = {{ .params.month }}{{ end }}
    GROUP BY month ORDER BY month
setup:
  - CREATE TABLE sales (month TEXT, amount INTEGER)
  - INSERT INTO sales VALUES ('jan', 10), ('jan', 5), ('feb', 7)
requests:
  - resource: monthly-sales
    params: {month: jan}
    expect:
      doc: {data: [[jan, 15]]}
`

const forbiddenScenario = `
name: wrong-expectation
documents: |
  kind: resource
  id: totals
  authentication:
    requiresAuthentication: false
  query: SELECT SUM(amount) AS total FROM sales
setup:
  - CREATE TABLE sales (amount INTEGER)
requests:
  - name: totals expected to be forbidden
    resource: totals
    expect:
      outcome: forbidden
`

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	stdout, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	stdout, _, err := execute(t, "test", t.TempDir(), "--format", "json")
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)

	stdout, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ january")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTestCommandSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "january.yaml", januaryScenario)
	writeFile(t, dir, "other.yaml", forbiddenScenario)

	stdout, _, err := execute(t, "test", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)
	writeFile(t, dir, "wrong.yaml", forbiddenScenario)

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✓ january")
	assert.Contains(t, stdout, "✗ wrong-expectation")
	assert.Contains(t, stdout, `totals expected to be forbidden: expected outcome "forbidden", got "ok"`)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)
	writeFile(t, dir, "wrong.yaml", forbiddenScenario)

	stdout, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "january", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[1].Errors)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)
	writeFile(t, dir, "wrong.yaml", forbiddenScenario)

	stdout, _, err := execute(t, "test", dir, "--filter", "jan*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nrequests: []\n")

	stdout, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)
	golden := filepath.Join(dir, "golden", "january.golden")

	stdout, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ january (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"january"`)
	assert.Contains(t, string(data), `"data":[["jan",15]]`)

	// An unchanged run matches, trailing whitespace included.
	require.NoError(t, os.WriteFile(golden, append(data, '\n'), 0o644))
	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, bytes.Replace(data, []byte("15"), []byte("16"), 1), 0o644))
	stdout, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "trace does not match golden file")
}

func TestTestCommandUpdateSkipsFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", forbiddenScenario)

	_, _, err := execute(t, "test", dir, "--update")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "golden", "wrong-expectation.golden"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTestCommandGoldenDirFlag(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "january.yaml", januaryScenario)
	goldenDir := filepath.Join(t.TempDir(), "snapshots")

	_, _, err := execute(t, "test", dir, "--update", "--golden", goldenDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(goldenDir, "january.golden"))
	assert.NoDirExists(t, filepath.Join(dir, "golden"))
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "sales-monthly.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "sales-regional.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "orders-recent.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "sales-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "sales-")
	}

	_, err = findScenarioFiles(tmpDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		dir      string
		file     string
		name     string
		expected string
	}{
		{"", "/path/to/scenario.yaml", "monthly", "/path/to/golden/monthly.golden"},
		{"", "scenarios/test.yml", "test", "scenarios/golden/test.golden"},
		{"/tmp/snapshots", "scenarios/test.yaml", "test", "/tmp/snapshots/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.dir, tc.file, tc.name))
	}
}
