package params

import (
	"errors"
	"fmt"
)

// Parameter error codes. Each maps to exactly one failure kind.
const (
	CodeRequiredMissing = "REQUIRED_PARAMETER_MISSING"
	CodeBadRequest      = "BAD_REQUEST"
	CodeNumberParse     = "NUMBER_PARSE_ERROR"
	CodeDateParse       = "DATE_PARSE_ERROR"
	CodeDateTimeParse   = "DATETIME_PARSE_ERROR"
)

// ParamError is a request-time parameter validation failure.
// It is always attributable to one named parameter and its raw value.
type ParamError struct {
	Code    string
	Param   string
	Value   any    // raw value that failed, nil when missing
	Format  string // expected format, Date/DateTime only
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: parameter %q: %s", e.Code, e.Param, e.Message)
}

// IsParamError returns true if err is or wraps a *ParamError.
func IsParamError(err error) bool {
	var pe *ParamError
	return errors.As(err, &pe)
}

// AsParamError extracts the *ParamError from err, if any.
func AsParamError(err error) (*ParamError, bool) {
	var pe *ParamError
	ok := errors.As(err, &pe)
	return pe, ok
}

// HasCode reports whether err is a *ParamError with the given code.
func HasCode(err error, code string) bool {
	pe, ok := AsParamError(err)
	return ok && pe.Code == code
}

func missing(name string) *ParamError {
	return &ParamError{
		Code:    CodeRequiredMissing,
		Param:   name,
		Message: "required parameter is missing",
	}
}
