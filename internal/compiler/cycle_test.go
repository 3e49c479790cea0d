package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/ir"
)

// TestAnalyzeSnippetCycles_Empty tests that empty input produces no cycles.
func TestAnalyzeSnippetCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeSnippetCycles(nil))
}

// TestAnalyzeSnippetCycles_DAG tests that a chain of includes is not a cycle.
func TestAnalyzeSnippetCycles_DAG(t *testing.T) {
	snippets := []ir.SnippetSpec{
		{ID: "base", Template: "SELECT 1 AS n"},
		{ID: "wrapped", Template: `SELECT * FROM ({{ template "base" . }}) AS b`},
		{ID: "twice", Template: `{{ template "wrapped" . }} UNION ALL {{ template "base" . }}`},
	}
	assert.Empty(t, AnalyzeSnippetCycles(snippets))
}

// TestAnalyzeSnippetCycles_SelfLoop tests a snippet that includes itself.
func TestAnalyzeSnippetCycles_SelfLoop(t *testing.T) {
	snippets := []ir.SnippetSpec{
		{ID: "loop", Template: `SELECT * FROM ({{ template "loop" . }})`},
	}

	cycles := AnalyzeSnippetCycles(snippets)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"loop", "loop"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "includes itself")
}

// TestAnalyzeSnippetCycles_ThreeNodes tests a → b → c → a.
func TestAnalyzeSnippetCycles_ThreeNodes(t *testing.T) {
	snippets := []ir.SnippetSpec{
		{ID: "c", Template: `{{ template "a" . }}`},
		{ID: "a", Template: `{{ template "b" . }}`},
		{ID: "b", Template: `{{ template "c" . }}`},
		{ID: "leaf", Template: "SELECT 1"},
	}

	cycles := AnalyzeSnippetCycles(snippets)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Equal(t, "snippet include cycle: a → b → c → a", cycles[0].Message)
}

// TestAnalyzeSnippetCycles_IgnoresUnknownAndBroken tests that references to
// undefined snippets and unparsable templates do not produce cycles.
func TestAnalyzeSnippetCycles_IgnoresUnknownAndBroken(t *testing.T) {
	snippets := []ir.SnippetSpec{
		{ID: "a", Template: `{{ template "missing" . }}`},
		{ID: "b", Template: `{{ if }}`},
	}
	assert.Empty(t, AnalyzeSnippetCycles(snippets))
}

// TestAnalyzeSnippetCycles_Deterministic tests repeated analysis yields the same result.
func TestAnalyzeSnippetCycles_Deterministic(t *testing.T) {
	snippets := []ir.SnippetSpec{
		{ID: "x", Template: `{{ template "y" . }}`},
		{ID: "y", Template: `{{ template "x" . }}`},
		{ID: "p", Template: `{{ template "p" . }}`},
	}

	first := AnalyzeSnippetCycles(snippets)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeSnippetCycles(snippets))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "p", first[0].Path[0])
	assert.Equal(t, "x", first[1].Path[0])
}
