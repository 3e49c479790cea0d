package querysql

import (
	"errors"
	"fmt"
)

// ConfigError is a template problem detected outside the request cycle:
// parse failures, missing snippets, duplicate snippets and unknown bind
// styles. A resource carrying one must not be served.
type ConfigError struct {
	Template string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RenderError is a template execution failure for one request, such as an
// invalid identifier or an unknown date range.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsRenderError returns true if err is or wraps a *RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
