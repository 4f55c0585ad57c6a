// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Response returns the client-visible part of the error.
func (e *ConvertError) Response() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Message: e.Detail,
	}
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}
