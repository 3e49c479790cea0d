// Package querysql renders SQL templates into parameterized queries.
//
// Templates use text/template syntax evaluated against the execution
// context (.config, .user, .identity, .params). Every output action in a
// template, including actions inside snippets, is rewritten at compile time
// so its value flows through an internal bind function. Bind emits the
// placeholder of the requested BindStyle and records the value; no
// interpolation site can emit raw text. Helpers that build SQL fragments
// (inclause, identifier, daterange) return a Fragment that bind passes
// through, with every value inside the fragment itself bound.
//
// Example:
//
//	SELECT month, SUM(sales) AS sales FROM ({{ template "sales-data" . }})
//	{{ if .params.month }} WHERE month = {{ .params.month }} {{ end }}
//	GROUP BY month ORDER BY month
//
// rendered with style qmark yields "... WHERE month = ? ..." and
// Positional{"jan"}; with style named, "... WHERE month = :month_1 ..."
// and Named{"month_1": "jan"}.
//
// Compiled templates are immutable and safe for concurrent Render calls.
package querysql
