// Package errors provides the error model for the mdconvert service.
// It includes structured error types, JSON response formatting, request ID
// tracking, and integrated logging with Uber's zap logger.
//
// Every failure a client can observe is a *ConvertError. It serializes to the
// wire shape the conversion endpoint promises:
//
//	{"error": "<user-facing message>", "message": "<detail, development only>"}
//
// Basic usage:
//
//	errors.WriteError(w, errors.NewValidationError(requestID, errors.MsgTextRequired))
//
//	// Internal failures expose their cause only when expose is true
//	errors.WriteError(w, errors.NewInternalError(requestID, err, cfg.IsDevelopment()))
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors the service reports.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"

	// MethodNotAllowedError represents a request with an unsupported HTTP method
	MethodNotAllowedError ErrorType = "method_not_allowed"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// QueueFullError represents requests rejected by the admission queue
	QueueFullError ErrorType = "queue_full"

	// NotFoundError represents requests for unknown routes
	NotFoundError ErrorType = "not_found"

	// InternalError represents unexpected failures while parsing or converting
	InternalError ErrorType = "internal_error"
)

// User-facing messages written in the "error" field of a response.
const (
	MsgTextRequired     = "請提供要轉換的文本"
	MsgTextTooLong      = "文本太長"
	MsgMethodNotAllowed = "Method not allowed"
	MsgProcessingFailed = "處理失敗"
	MsgRateLimited      = "請求過於頻繁，請稍後再試"
	MsgQueueFull        = "服務繁忙，請稍後再試"
	MsgNotFound         = "Not found"
)

// ConvertError implements the error interface and carries everything needed
// to answer a failed request. Only Message and Detail reach the client.
type ConvertError struct {
	// Type categorizes the error for logging and metrics
	Type ErrorType `json:"-"`

	// Message is the user-facing description, sent as "error"
	Message string `json:"error"`

	// Detail is the internal cause, sent as "message" when exposed
	Detail string `json:"message,omitempty"`

	// Code is the HTTP status code
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"-"`

	// Headers are extra response headers, e.g. Retry-After
	Headers map[string]string `json:"-"`

	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *ConvertError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *ConvertError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *ConvertError) Is(target error) bool {
	t, ok := target.(*ConvertError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a ConvertError to an http.ResponseWriter.
// Headers already set on w, such as CORS headers, are preserved.
func WriteError(w http.ResponseWriter, err *ConvertError) {
	for k, v := range err.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err); encErr != nil {
		DefaultLogger.Error("failed to encode error response",
			zap.Error(encErr),
			zap.String("request_id", err.RequestID),
		)
	}
}

// ErrorWithType writes an error of the given type without an underlying
// cause. The request ID is taken from the response headers if available.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &ConvertError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
