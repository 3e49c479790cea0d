// Package engine defines the query engine boundary.
//
// An Engine executes final SQL plus bindings against a backing store and
// returns an ir.Table. Each engine declares the bind style its driver
// expects; templates render for that style. Concrete engines live in
// internal/store.
//
// Engines are shared by every request and must be safe for concurrent use.
// The core imposes no timeout, retry or caching policy on Execute; callers
// pass a context and engines honor its cancellation.
//
// Failures surfaced by an engine are *ExecutionError so callers can tell a
// data-store problem apart from request and configuration errors.
package engine
