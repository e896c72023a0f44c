// ABOUTME: OpenAI-style error envelope serialization for API handlers
// ABOUTME: Maps internal failures to HTTP status, type, and code triples

package gateway

import (
	"encoding/json"
	"net/http"
)

// APIError is the body of an error envelope.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps an APIError the way OpenAI clients expect.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Error codes returned by the API.
const (
	CodeMissingMessages    = "missing_messages"
	CodeMissingUserMessage = "missing_user_message"
	CodeModelNotFound      = "model_not_found"
	CodeProjectNotFound    = "project_not_found"
	CodeSessionNotFound    = "session_not_found"
	CodeCapacityExceeded   = "capacity_exceeded"
	CodeExecutionFailed    = "execution_failed"
	CodeStreamError        = "stream_error"
	CodeInvalidRequest     = "invalid_request"
)

func writeError(w http.ResponseWriter, status int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: APIError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
}

func writeInvalidRequest(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusBadRequest, "invalid_request_error", code, message)
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusNotFound, "invalid_request_error", code, message)
}

func writeServerError(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusInternalServerError, "server_error", code, message)
}
