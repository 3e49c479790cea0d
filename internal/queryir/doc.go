// Package queryir provides the rendered-query representation shared by the
// template engine and the query engines.
//
// A rendered query is final SQL text plus a Bindings value. Bindings is a
// sealed interface with exactly two variants:
//
//	Positional  ordered values for qmark, numeric, format and dollar styles
//	Named       name to value mapping for named and pyformat styles
//
// The shape is selected by the target engine's BindStyle. A Bindings value is
// built fresh per render and must never be shared across requests.
//
// Example:
//
//	switch b := q.Args.(type) {
//	case Positional:
//	    db.QueryContext(ctx, q.SQL, b...)
//	case Named:
//	    // pass sql.Named values
//	}
package queryir
