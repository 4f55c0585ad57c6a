package errors

import (
	"net/http"
	"strconv"
)

// NewError creates a new ConvertError with the given parameters.
// It is a general-purpose constructor; most callers want one of the
// specialized constructors below.
func NewError(errType ErrorType, message string, code int, requestID string, err error) *ConvertError {
	return &ConvertError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError creates a 400 error for a request whose content is
// unacceptable, such as missing or oversized text.
//
// Example:
//
//	err := NewValidationError("req_123", MsgTextTooLong)
func NewValidationError(requestID, message string) *ConvertError {
	return &ConvertError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
	}
}

// NewMethodNotAllowedError creates a 405 error. The body is the same for
// every method; the method is kept for logging only.
func NewMethodNotAllowedError(requestID, method string) *ConvertError {
	return &ConvertError{
		Type:      MethodNotAllowedError,
		Message:   MsgMethodNotAllowed,
		Code:      http.StatusMethodNotAllowed,
		RequestID: requestID,
		err:       methodError(method),
	}
}

// NewRateLimitError creates a 429 error telling the client when to retry.
//
// Example:
//
//	err := NewRateLimitError("req_123", 30)
func NewRateLimitError(requestID string, retryAfter int) *ConvertError {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &ConvertError{
		Type:      RateLimitError,
		Message:   MsgRateLimited,
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Headers: map[string]string{
			"Retry-After": strconv.Itoa(retryAfter),
		},
	}
}

// NewQueueFullError creates a 503 error for requests turned away by the
// admission queue.
func NewQueueFullError(requestID string) *ConvertError {
	return &ConvertError{
		Type:      QueueFullError,
		Message:   MsgQueueFull,
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
	}
}

// NewNotFoundError creates a 404 error for unknown routes.
func NewNotFoundError(requestID string) *ConvertError {
	return &ConvertError{
		Type:      NotFoundError,
		Message:   MsgNotFound,
		Code:      http.StatusNotFound,
		RequestID: requestID,
	}
}

// NewInternalError creates a 500 error for any unexpected failure while
// parsing or converting. The cause is copied into Detail only when expose
// is true, which is the case in development mode.
//
// Example:
//
//	err := NewInternalError("req_123", parseErr, cfg.IsDevelopment())
func NewInternalError(requestID string, err error, expose bool) *ConvertError {
	e := &ConvertError{
		Type:      InternalError,
		Message:   MsgProcessingFailed,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
	if expose && err != nil {
		e.Detail = err.Error()
	}
	return e
}

type methodError string

func (m methodError) Error() string {
	return "unsupported method " + string(m)
}
