package resource

import (
	"errors"
	"fmt"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/querysql"
)

var (
	// ErrUnauthorized means the resource requires an identity and none was given.
	ErrUnauthorized = errors.New("authentication required")

	// ErrNotFound means no resource matches the requested id or path.
	ErrNotFound = errors.New("resource not found")
)

// ForbiddenError means an authorization predicate returned no rows.
// It carries the rule id, never the predicate SQL.
type ForbiddenError struct {
	RuleID string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden by authorization rule %q", e.RuleID)
}

// IsForbidden returns true if err is or wraps a *ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// ConfigError is a definition problem found while building a resource or
// catalog. A catalog containing one is never served.
type ConfigError struct {
	Resource string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("resource %q: %v", e.Resource, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError returns true if err is a resource or template config error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) || querysql.IsConfigError(err)
}

// Request outcomes used for logging and metrics.
const (
	OutcomeOK             = "ok"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeForbidden      = "forbidden"
	OutcomeBadRequest     = "bad_request"
	OutcomeNotFound       = "not_found"
	OutcomeExecutionError = "execution_error"
	OutcomeConfigError    = "config_error"
	OutcomeError          = "error"
)

// Outcome classifies err into one of the Outcome constants.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case IsForbidden(err):
		return OutcomeForbidden
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case params.IsParamError(err), querysql.IsRenderError(err):
		return OutcomeBadRequest
	case engine.IsExecutionError(err):
		return OutcomeExecutionError
	case IsConfigError(err):
		return OutcomeConfigError
	default:
		return OutcomeError
	}
}
