package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs the scenarios under testdata/scenarios end to end.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Description, "scenario should have description")

			result, err := runScenario(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Requests))
		})
	}
}

// runScenario compares against a golden file when the scenario has one.
func runScenario(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	if scenario.Name == "monthly_sales" {
		return RunWithGolden(t, scenario)
	}
	return Run(context.Background(), scenario)
}

func TestRowLevelSecurity_FiltersByIdentity(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/row_level_security.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	north := result.Trace[2].Doc.(map[string]any)["data"].([]any)
	require.Len(t, north, 1)
	assert.Equal(t, "north", north[0].(map[string]any)["region"])
	assert.Contains(t, result.Trace[1].Error, `"is-analyst"`)
}
