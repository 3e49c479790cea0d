package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/resource"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"resources": 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"resources": float64(2)}, resp.Data)
	assert.Empty(t, resp.RequestID)
	assert.NotContains(t, buf.String(), "request_id")
}

func TestOutputFormatter_JSONRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, RequestID: "req-1"}

	require.NoError(t, formatter.Error(resource.OutcomeForbidden, "rule is-analyst denied the request", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resource.OutcomeForbidden, resp.Error.Code)
	assert.Equal(t, "rule is-analyst denied the request", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"file": "sales.yml", "line": "12"}
	require.NoError(t, formatter.Error(ErrCodeInvalidDocument, "unknown object kind", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]any{"file": "sales.yml", "line": "12"}, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		details any
		want    []string
		notWant []string
	}{
		{
			name: "plain",
			want: []string{"Error [E005]: resources directory not found"},
		},
		{
			name:    "details hidden",
			details: "sales.yml",
			notWant: []string{"Details:"},
		},
		{
			name:    "details shown when verbose",
			verbose: true,
			details: "sales.yml",
			want:    []string{"Details: sales.yml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeNotFound, "resources directory not found", tt.details))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}

	buf := &bytes.Buffer{}
	require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).Success("All definitions valid"))
	assert.Equal(t, "All definitions valid\n", buf.String())
}

func TestOutputFormatter_RequestFailed(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  CLIError
		text  []string
		nText []string
	}{
		{
			name: "rejected parameter",
			err:  fmt.Errorf("normalize: %w", &params.ParamError{Code: params.CodeBadRequest, Param: "month", Message: "month: value not allowed"}),
			want: CLIError{
				Code:      resource.OutcomeBadRequest,
				Parameter: "month",
				Details:   params.CodeBadRequest,
			},
			text:  []string{"Error [bad_request]: ", "Parameter: month"},
			nText: []string{"Rule:"},
		},
		{
			name: "denying rule",
			err:  &resource.ForbiddenError{RuleID: "is-analyst"},
			want: CLIError{
				Code: resource.OutcomeForbidden,
				Rule: "is-analyst",
			},
			text:  []string{"Error [forbidden]: ", "Rule: is-analyst"},
			nText: []string{"Parameter:"},
		},
		{
			name: "anonymous caller",
			err:  resource.ErrUnauthorized,
			want: CLIError{Code: resource.OutcomeUnauthorized},
			text: []string{"Error [unauthorized]: "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := requestError(tt.err)
			assert.Equal(t, tt.err.Error(), got.Message)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Parameter, got.Parameter)
			assert.Equal(t, tt.want.Rule, got.Rule)
			assert.Equal(t, tt.want.Details, got.Details)

			buf := &bytes.Buffer{}
			err := (&OutputFormatter{Format: "text", Writer: buf}).RequestFailed("request failed", tt.err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			for _, w := range tt.text {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.nText {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}
}

func TestOutputFormatter_CommandFailed(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.CommandFailed("loading definitions", &LoadError{Code: ErrCodeNotFound, Message: "resources directory not found"})
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "loading definitions: ")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Empty(t, resp.Error.Parameter)
	assert.Empty(t, resp.Error.Rule)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		errW    bool
	}{
		{"disabled", false, false},
		{"falls back to writer", true, false},
		{"uses error writer", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, Verbose: tt.verbose}
			if tt.errW {
				formatter.ErrWriter = errOut
			}

			formatter.VerboseLog("Processing %s", "monthly-sales")

			switch {
			case !tt.verbose:
				assert.Empty(t, out.String())
				assert.Empty(t, errOut.String())
			case tt.errW:
				assert.Empty(t, out.String())
				assert.Equal(t, "Processing monthly-sales\n", errOut.String())
				assert.Same(t, errOut, formatter.GetErrWriter())
			default:
				assert.Equal(t, "Processing monthly-sales\n", out.String())
				assert.Same(t, out, formatter.GetErrWriter())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")

	err := WrapExitError(ExitCommandError, "loading definitions", cause)
	assert.Equal(t, "loading definitions: no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("serve: %w", err)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))

	plain := NewExitError(ExitFailure, "2 scenario(s) failed")
	assert.Equal(t, "2 scenario(s) failed", plain.Error())
	assert.NoError(t, plain.Unwrap())

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("unexpected")))
}
