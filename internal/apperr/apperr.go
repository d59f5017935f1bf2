package apperr

import (
	"errors"

	"github.com/valyala/fasthttp"
)

// Error is an error that carries the HTTP status it should be reported with.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func BadRequest(message string) *Error {
	return &Error{Status: fasthttp.StatusBadRequest, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Status: fasthttp.StatusTooManyRequests, Message: message}
}

func Unavailable(message string) *Error {
	return &Error{Status: fasthttp.StatusServiceUnavailable, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Status: fasthttp.StatusInternalServerError, Message: message, Err: err}
}

// StatusOf returns the HTTP status for err, defaulting to 500 for errors
// that do not carry one.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return fasthttp.StatusInternalServerError
}
