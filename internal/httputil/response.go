package httputil

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// FieldError describes a single failed DTO constraint
type FieldError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Constraint string `json:"constraint,omitempty"`
}

// ErrorResponse is the envelope returned for every API error
type ErrorResponse struct {
	StatusCode    int          `json:"statusCode"`
	Message       string       `json:"message"`
	Error         string       `json:"error"`
	Code          string       `json:"code,omitempty"`
	Errors        []FieldError `json:"errors,omitempty"`
	Timestamp     string       `json:"timestamp"`
	Path          string       `json:"path"`
	CorrelationID string       `json:"correlationId"`
}

// MessageResponse is a body carrying only a human readable message
type MessageResponse struct {
	Message string `json:"message"`
}

var errorNames = map[int]string{
	http.StatusBadRequest:            "Bad Request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Forbidden",
	http.StatusNotFound:              "Not Found",
	http.StatusMethodNotAllowed:      "Method Not Allowed",
	http.StatusConflict:              "Conflict",
	http.StatusRequestEntityTooLarge: "Payload Too Large",
	http.StatusUnprocessableEntity:   "Unprocessable Entity",
	http.StatusTooManyRequests:       "Too Many Requests",
	http.StatusInternalServerError:   "Internal Server Error",
	http.StatusBadGateway:            "Bad Gateway",
	http.StatusServiceUnavailable:    "Service Unavailable",
	http.StatusGatewayTimeout:        "Gateway Timeout",
}

// ErrorName returns the reason phrase used in the envelope's error field
func ErrorName(status int) string {
	if name, ok := errorNames[status]; ok {
		return name
	}
	return "Error"
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondMessage sends {"message": ...}
func RespondMessage(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, MessageResponse{Message: message}, statusCode)
}

// NewErrorResponse builds the envelope for r
func NewErrorResponse(r *http.Request, message, code string, statusCode int) ErrorResponse {
	return ErrorResponse{
		StatusCode:    statusCode,
		Message:       message,
		Error:         ErrorName(statusCode),
		Code:          code,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Path:          r.URL.RequestURI(),
		CorrelationID: CorrelationIDFromRequest(r),
	}
}

// RespondError sends an error envelope without a machine-readable code.
func RespondError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	RespondJSON(w, NewErrorResponse(r, message, "", statusCode), statusCode)
}

// RespondErrorWithCode sends an error envelope with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, r *http.Request, message string, code string, statusCode int) {
	RespondJSON(w, NewErrorResponse(r, message, code, statusCode), statusCode)
}

// RespondValidationError sends a 400 envelope listing field errors
func RespondValidationError(w http.ResponseWriter, r *http.Request, fields []FieldError) {
	resp := NewErrorResponse(r, "Validation failed", CodeValidationFailed, http.StatusBadRequest)
	resp.Errors = fields
	RespondJSON(w, resp, http.StatusBadRequest)
}

// NotFound is used as the router's fallback handler
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondErrorWithCode(w, r, "Cannot "+r.Method+" "+r.URL.Path, CodeRouteNotFound, http.StatusNotFound)
}

// MethodNotAllowed is used as the router's 405 handler
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondErrorWithCode(w, r, "Method "+r.Method+" not allowed", CodeMethodNotAllowed, http.StatusMethodNotAllowed)
}
