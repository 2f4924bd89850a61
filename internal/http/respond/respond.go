package respond

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the error envelope.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

type successEnvelope struct {
	OK      bool        `json:"ok"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

type errorEnvelope struct {
	OK      bool        `json:"ok"`
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func write(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK sends a 200 success envelope
func OK(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, successEnvelope{OK: true, Data: data})
}

// Created sends a 201 success envelope with a message
func Created(w http.ResponseWriter, data interface{}, message string) {
	write(w, http.StatusCreated, successEnvelope{OK: true, Data: data, Message: message})
}

// Err sends an error envelope with the given status and code
func Err(w http.ResponseWriter, status int, code, message string) {
	write(w, status, errorEnvelope{OK: false, Error: message, Code: code})
}

// BadRequest sends a 400 error envelope
func BadRequest(w http.ResponseWriter, message string) {
	Err(w, http.StatusBadRequest, CodeBadRequest, message)
}

// Unauthorized sends a 401 error envelope
func Unauthorized(w http.ResponseWriter, message string) {
	Err(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// NotFound sends a 404 error envelope
func NotFound(w http.ResponseWriter) {
	Err(w, http.StatusNotFound, CodeNotFound, "Not found")
}

// Conflict sends a 409 error envelope
func Conflict(w http.ResponseWriter, message string) {
	Err(w, http.StatusConflict, CodeConflict, message)
}

// TooManyRequests sends a 429 error envelope
func TooManyRequests(w http.ResponseWriter, message string) {
	Err(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// ValidationError sends a 422 error envelope with field-level details
func ValidationError(w http.ResponseWriter, details interface{}) {
	write(w, http.StatusUnprocessableEntity, errorEnvelope{
		OK:      false,
		Error:   "Validation failed",
		Code:    CodeValidationError,
		Details: details,
	})
}

// Internal sends a generic 500 error envelope; internals are never leaked
func Internal(w http.ResponseWriter) {
	Err(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}

// ServiceUnavailable sends a 503 error envelope
func ServiceUnavailable(w http.ResponseWriter, message string) {
	Err(w, http.StatusServiceUnavailable, CodeInternalError, message)
}
