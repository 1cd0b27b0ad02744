// Package api implements the ops HTTP gateway: a thin chi router over the
// job controller and registry for local runs and operational inspection. The
// production invocation surface is the Lambda entrypoints under cmd/; this
// gateway exposes the same operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"linkdrain/internal/types"
)

// maxRequestBodySize bounds create-job request bodies (1 MB).
const maxRequestBodySize = 1 << 20

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data})
}

// Error writes an error response. AppErrors map to their HTTP status with
// their code; anything else becomes a 500 with a generic message so internal
// details never leak to clients.
func Error(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		writeError(w, appErr.HTTPStatus(), string(appErr.Code), appErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError,
		string(types.ErrCodeInternalUnexpected), "internal server error")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
