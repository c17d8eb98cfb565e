// Package errors defines the pre-stream error taxonomy: failures that occur
// before the proxy commits to a 200 streaming response get a typed AppError
// and a JSON envelope; once the stream starts, errors become in-band
// NormalizedEvents instead (see internal/proxy).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the class of a pre-stream failure.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError is a pre-stream failure carrying an HTTP-mappable code.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps an error code to the status written pre-stream.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports a 400: unknown provider, empty message list
// after filtering, or any other request shape the orchestrator rejects
// before opening an upstream connection.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

// NewUnavailableError reports a 503: the upstream client pool never came up.
func NewUnavailableError(message string) *AppError {
	return &AppError{Code: CodeServiceUnavail, Message: message}
}

// NewInternalError reports a 500 for failures that aren't the caller's fault
// and aren't a configuration problem.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// IsInvalidInput reports whether err is a validation AppError.
func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// Envelope is the wire shape of a pre-stream error response:
// {"error":{"message","code","type":"proxy_error"}}. Code carries the HTTP
// status code as an int, mirroring original_source/app1_backend/main.py's
// error_response(code:int, msg, ...), not the ErrorCode label.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

type EnvelopeBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// NewEnvelope builds the JSON body for a pre-stream error response.
func NewEnvelope(err *AppError) Envelope {
	return Envelope{Error: EnvelopeBody{
		Message: err.Message,
		Code:    err.HTTPStatus(),
		Type:    "proxy_error",
	}}
}
