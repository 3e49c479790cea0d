// Package ir provides the canonical data types shared by every squealy package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the compiled definition
// model and the query result model as the foundational layer.
//
// Key design constraints:
//   - Compiled specs are immutable once returned by the compiler
//   - Table rows are positional and always aligned to Columns
//   - All JSON tags use snake_case
//   - Canonical JSON is the only serialization used for content hashes
package ir
