package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/resource"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // invalid definitions, a failed request or a failed scenario
	ExitCommandError = 2 // unusable arguments, paths, config or datasources
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code carried by err, or ExitFailure when err
// carries none.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
	RequestID string // echoed in JSON responses when set
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// CLIError describes a failure. Code is a command error code (E001...) or,
// for a processed request, the request outcome. Parameter and Rule name the
// rejected parameter and the denying authorization rule.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Parameter string `json:"parameter,omitempty"`
	Rule      string `json:"rule,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// requestError builds the error for a resource request that was processed
// and failed.
func requestError(err error) *CLIError {
	e := &CLIError{Code: resource.Outcome(err), Message: err.Error()}
	if pe, ok := params.AsParamError(err); ok {
		e.Parameter = pe.Param
		e.Details = pe.Code
	}
	var fe *resource.ForbiddenError
	if errors.As(err, &fe) {
		e.Rule = fe.RuleID
	}
	return e
}

// Success writes data.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data, RequestID: f.RequestID})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a failure with a command error code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.fail(&CLIError{Code: code, Message: message, Details: details})
}

// CommandFailed reports an error that stopped the command before any request
// was processed.
func (f *OutputFormatter) CommandFailed(message string, err error) error {
	_ = f.fail(&CLIError{Code: errorCode(err), Message: err.Error()})
	return WrapExitError(ExitCommandError, message, err)
}

// RequestFailed reports a processed request that ended in a failure outcome.
func (f *OutputFormatter) RequestFailed(message string, err error) error {
	_ = f.fail(requestError(err))
	return WrapExitError(ExitFailure, message, err)
}

func (f *OutputFormatter) fail(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: e, RequestID: f.RequestID})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Parameter != "" {
		fmt.Fprintf(f.Writer, "Parameter: %s\n", e.Parameter)
	}
	if e.Rule != "" {
		fmt.Fprintf(f.Writer, "Rule: %s\n", e.Rule)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// VerboseLog writes a diagnostic line in verbose mode. JSON output stays
// clean when ErrWriter is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns the writer for diagnostics.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
