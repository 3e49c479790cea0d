package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/querysql"
)

// SnippetCycle describes snippets that include each other.
//
// Cycles are errors, not warnings: a template that includes itself, directly
// or through other snippets, recurses until the renderer gives up.
type SnippetCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeSnippetCycles performs static cycle analysis on snippet includes.
//
// The algorithm:
//  1. Build snippet → included snippets graph from {{ template "id" }} calls
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// Snippets that fail to parse or include unknown ids are skipped here;
// Validate reports them separately. A DAG returns an empty list.
func AnalyzeSnippetCycles(snippets []ir.SnippetSpec) []SnippetCycle {
	if len(snippets) == 0 {
		return []SnippetCycle{}
	}

	graph := buildIncludeGraph(snippets)
	sccs := tarjanSCC(graph)

	cycles := []SnippetCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Path[0] < cycles[j].Path[0] })

	return cycles
}

// includeGraph maps snippet id → snippet ids it includes.
type includeGraph map[string][]string

func buildIncludeGraph(snippets []ir.SnippetSpec) includeGraph {
	known := make(map[string]bool, len(snippets))
	for _, sn := range snippets {
		known[sn.ID] = true
	}

	graph := make(includeGraph)
	for _, sn := range snippets {
		// Initialize with empty slice if no edges (ensures node exists in graph)
		if graph[sn.ID] == nil {
			graph[sn.ID] = []string{}
		}
		refs, err := querysql.References(sn.Template)
		if err != nil {
			continue
		}
		for _, ref := range refs {
			if known[ref] {
				graph[sn.ID] = append(graph[sn.ID], ref)
			}
		}
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph includeGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph includeGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToCycle converts an SCC to a SnippetCycle starting at its smallest id.
func sccToCycle(scc []string, graph includeGraph) SnippetCycle {
	sort.Strings(scc)
	if len(scc) == 1 {
		id := scc[0]
		return SnippetCycle{
			Path:    []string{id, id},
			Message: fmt.Sprintf("snippet includes itself: %s → %s", id, id),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return SnippetCycle{
		Path:    path,
		Message: fmt.Sprintf("snippet include cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph includeGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
