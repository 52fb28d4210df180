package models

import (
	"errors"
	"fmt"
)

var ErrBadRequest = errors.New("bad request")
var ErrUnauthorized = errors.New("unauthorized")
var ErrForbidden = errors.New("forbidden")
var ErrServerError = errors.New("server error")
var ErrNotFound = errors.New("not found")
var ErrNotAllowed = errors.New("not allowed")

// Error carries a message meant for the API caller. It unwraps to one of the
// sentinel kinds above so handlers can pick a status code with errors.Is.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Message returns the text that is safe to show to an API caller.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNotAllowed):
		return err.Error()
	}
	return ErrServerError.Error()
}
