package gateway

import (
	"errors"
	"net/http"
)

// Error is a caller-facing failure with a final HTTP status. Anything
// else propagates to the shared boundary handler untyped.
type Error struct {
	Status  int
	Message string
	Details interface{}
}

func (e *Error) Error() string {
	return e.Message
}

func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

func BadRequestDetails(message string, details interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Details: details}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Message: message}
}

// AsError unwraps a gateway error from an error chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
