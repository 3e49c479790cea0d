// Package params implements the typed request parameters of a resource.
//
// Each Parameter normalizes one raw request value into a typed value or fails
// with a *ParamError naming the parameter and the offending raw value. The
// variants are String, Number, Date and DateTime; New is the closed registry
// mapping a declared kind to its constructor.
//
// Normalization rules shared by every variant:
//   - nil, "" and whitespace-only strings are blank and treated as absent
//   - an absent value is replaced by the declared default
//   - still absent and mandatory fails with REQUIRED_PARAMETER_MISSING
//   - still absent and optional normalizes to nil
//
// Date and DateTime resolve named macros ("today", "now", ...) against an
// injected Clock so results are deterministic under test.
package params
