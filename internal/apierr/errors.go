package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes carried by field-level errors.
const (
	CodeMissing       = "MISSING"
	CodeInvalid       = "INVALID"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeNotFound      = "NOT_FOUND"
)

// Error describes a single problem with one input field.
type Error struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorMessage is the JSON body returned to clients for failed requests.
type ErrorMessage struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Errors  []Error `json:"errors,omitempty"`
}

// Add appends field errors and returns m for chaining.
func (m *ErrorMessage) Add(errs ...Error) *ErrorMessage {
	m.Errors = append(m.Errors, errs...)
	return m
}

// ServiceError is an error with HTTP semantics.
type ServiceError struct {
	Msg   ErrorMessage
	cause error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Msg.Code, e.Msg.Message)
	for i, fe := range e.Msg.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %s", fe.Field, fe.Code)
		if fe.Message != "" {
			fmt.Fprintf(&b, " (%s)", fe.Message)
		}
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Status is the HTTP status code for this error.
func (e *ServiceError) Status() int { return e.Msg.Code }

func newError(status int, msg string, cause error) *ServiceError {
	return &ServiceError{Msg: ErrorMessage{Code: status, Message: msg}, cause: cause}
}

func BadRequest(format string, args ...any) *ServiceError {
	return newError(http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// BadRequestWithErrors builds a 400 error listing the offending fields.
func BadRequestWithErrors(msg string, errs ...Error) *ServiceError {
	e := newError(http.StatusBadRequest, msg, nil)
	e.Msg.Add(errs...)
	return e
}

func Unauthorized(format string, args ...any) *ServiceError {
	return newError(http.StatusUnauthorized, fmt.Sprintf(format, args...), nil)
}

func Forbidden(format string, args ...any) *ServiceError {
	return newError(http.StatusForbidden, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *ServiceError {
	return newError(http.StatusNotFound, fmt.Sprintf(format, args...), nil)
}

// Unexpected builds a 500 error. cause may be nil.
func Unexpected(cause error, format string, args ...any) *ServiceError {
	return newError(http.StatusInternalServerError, fmt.Sprintf(format, args...), cause)
}

// As returns the ServiceError in err's chain, if any.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StatusOf maps err to an HTTP status. Errors that are not service errors are 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if se, ok := As(err); ok {
		return se.Status()
	}
	return http.StatusInternalServerError
}

// MessageOf converts any error into a client-facing ErrorMessage.
func MessageOf(err error) ErrorMessage {
	if se, ok := As(err); ok {
		return se.Msg
	}
	return ErrorMessage{Code: http.StatusInternalServerError, Message: err.Error()}
}
