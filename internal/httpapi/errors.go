package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/imgaoyue/squealy/internal/params"
	"github.com/imgaoyue/squealy/internal/querysql"
	"github.com/imgaoyue/squealy/internal/resource"
)

// Error codes that are not parameter codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Parameter string `json:"parameter,omitempty"`
	Rule      string `json:"rule,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// errorResponse maps a processing error to a status and body. Execution and
// configuration failures are reported without their details.
func errorResponse(err error) (int, ErrorDetail) {
	if pe, ok := params.AsParamError(err); ok {
		return http.StatusBadRequest, ErrorDetail{Code: pe.Code, Message: pe.Message, Parameter: pe.Param}
	}
	var fe *resource.ForbiddenError
	switch {
	case errors.Is(err, resource.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorDetail{Code: CodeUnauthorized, Message: "authentication required"}
	case errors.As(err, &fe):
		return http.StatusForbidden, ErrorDetail{Code: CodeForbidden, Message: "access denied", Rule: fe.RuleID}
	case errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: "resource not found"}
	case querysql.IsRenderError(err):
		return http.StatusBadRequest, ErrorDetail{Code: params.CodeBadRequest, Message: "request could not be rendered"}
	}
	return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorResponse(err)
	detail.RequestID = resource.RequestID(r.Context())

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", detail.RequestID, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}
