// Package apperr defines the domain error used across services and its
// translation to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Not-found codes live in the 2000 range.
const (
	CodeUserNotFound         = 2000
	CodeOrganizationNotFound = 2001
	CodeProjectNotFound      = 2002
	CodeDatasourceNotFound   = 2003
	CodeNotebookNotFound     = 2004
	CodeConversationNotFound = 2005
	CodeMessageNotFound      = 2006
	CodeAgentSessionNotFound = 2007
)

// Client errors reuse the HTTP status as their code.
const (
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeConflict      = 409
	CodeQueryRejected = 422
)

const (
	CodeInternal              = 5000
	CodeLLMUnavailable        = 5001
	CodeDatasourceUnavailable = 5002
)

// DomainError is a failure with a numeric code understood by the transport layer.
type DomainError struct {
	Code    int
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the code onto an HTTP status.
func (e *DomainError) HTTPStatus() int {
	switch {
	case e.Code >= 2000 && e.Code <= 2999:
		return http.StatusNotFound
	case e.Code >= 400 && e.Code <= 499:
		return e.Code
	default:
		return http.StatusInternalServerError
	}
}

func New(code int, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func Wrap(code int, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

func NotFound(code int, entity, identifier string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf("%s not found: %s", entity, identifier),
		Details: map[string]any{"entity": entity, "identifier": identifier},
	}
}

func BadRequest(message string) *DomainError {
	return New(CodeBadRequest, message)
}

func Unauthorized(message string) *DomainError {
	return New(CodeUnauthorized, message)
}

func Conflict(message string) *DomainError {
	return New(CodeConflict, message)
}

func QueryRejected(message string) *DomainError {
	return New(CodeQueryRejected, message)
}

func Internal(err error) *DomainError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DomainError{Code: CodeInternal, Message: msg, Err: err}
}

// As extracts a DomainError from the chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Is reports whether err carries a DomainError with the given code.
func Is(err error, code int) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// HTTPStatus returns the status for any error; non-domain errors are 500.
func HTTPStatus(err error) int {
	if de, ok := As(err); ok {
		return de.HTTPStatus()
	}
	return http.StatusInternalServerError
}
