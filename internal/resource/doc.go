// Package resource turns compiled resource definitions into callable
// endpoints.
//
// A Resource is built once from an ir.ResourceSpec and is immutable
// afterwards. Process is the single entry point for callers:
//
//  1. Authenticate: a resource requiring authentication rejects a nil identity
//  2. Authorize: every authorization predicate must return at least one row
//  3. Normalize: declared parameters are replaced by their typed values
//  4. Render: the query template is rendered for the engine's bind style
//  5. Execute: the engine runs the query
//  6. Format: the formatter shapes the table into the response document
//
// The first failing step aborts the request. Nothing is retried or cached.
//
// A Catalog holds every resource of one definition set plus the engines they
// use. Catalogs are rebuilt wholesale on reload and never mutated.
package resource
