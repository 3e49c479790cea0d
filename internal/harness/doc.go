// Package harness runs YAML request scenarios against squealy definitions.
//
// Every scenario gets a fresh in-memory SQLite database registered as the
// default engine. Setup statements seed it, the definitions are compiled
// into a catalog, and each request runs through the same pipeline the HTTP
// server uses: authenticate, authorize, normalize, render, execute, format.
// Date macros read a fixed clock so documents are reproducible.
//
// # Scenario Format
//
//	name: row_level_security
//	description: "Analysts only see their own regions"
//	clock: "2024-03-15T10:30:00Z"
//	definitions:
//	  - resources/sales.yml
//	documents: |
//	  kind: resource
//	  id: ping
//	  query: SELECT 1 AS one
//	setup:
//	  - CREATE TABLE sales (region TEXT, amount INTEGER)
//	  - INSERT INTO sales VALUES ('north', 44), ('south', 12)
//	requests:
//	  - name: north only
//	    resource: regional-sales
//	    identity: { role: analyst, regions: [north] }
//	    expect:
//	      outcome: ok
//	      doc: { data: [{ region: north, total: 44 }] }
//	  - resource: regional-sales
//	    expect: { outcome: unauthorized }
//	assertions:
//	  - type: outcome_count
//	    outcome: ok
//	    count: 1
//	  - type: final_state
//	    table: sales
//	    where: { region: south }
//	    expect: { amount: 12 }
//
// Definition paths are resolved relative to the scenario file. Every
// resource runs on the scenario database regardless of the datasource it
// names, and declared datasources are ignored.
//
// # Golden Files
//
// The trace of a run (request, normalized outcome and document per step)
// can be snapshotted with RunWithGolden. Golden files live under
// testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
