package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error code. Codes are part of the API
// contract and must not change between releases.
type Code string

const (
	CodeInvalidGrant        Code = "invalid_grant"
	CodeInvalidRequest      Code = "invalid_request"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeTokenExpired        Code = "token_expired"
	CodeTokenInvalid        Code = "token_invalid"
	CodeTokenReplay         Code = "token_replay"
	CodeTenantMismatch      Code = "tenant_mismatch"
	CodeForbidden           Code = "forbidden"
	CodeUnauthorized        Code = "unauthorized"
)

// AuthError is the error type surfaced for every authentication and
// authorization failure. Internal causes stay in the wrapped error and are
// never serialized to clients.
type AuthError struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message, cause: err}
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// Is matches on code so callers can compare against sentinel AuthErrors.
func (e *AuthError) Is(target error) bool {
	var ae *AuthError
	if errors.As(target, &ae) {
		return ae.Code == e.Code
	}
	return false
}

// FromErr extracts the AuthError from an error chain.
func FromErr(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the code carried in the error chain, or CodeUnauthorized
// when the error carries no AuthError.
func CodeOf(err error) Code {
	if ae, ok := FromErr(err); ok {
		return ae.Code
	}
	return CodeUnauthorized
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	return CodeOf(err) == CodeUpstreamUnavailable
}

// Security reports whether the error should be logged as a security event.
func Security(err error) bool {
	switch CodeOf(err) {
	case CodeTokenReplay, CodeTokenInvalid, CodeTenantMismatch:
		return true
	}
	return false
}

// HTTPStatus maps an error to the response status. 401 means the caller is
// unknown, 403 means the caller is known but not entitled; the two are never
// collapsed.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeTenantMismatch, CodeForbidden:
		return http.StatusForbidden
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}
