// Package apperr provides the standardized error type for the
// authorization server, carrying the eleven stable OAuth wire kinds from
// spec §7 and their HTTP status mapping.
//
// Grounded on the teacher's internal/errors/errors.go AppError shape and
// constructor style; the error-code table itself is rebuilt from scratch
// against RFC 6749 §5.2's error kinds (the teacher's own codes, e.g.
// NOT_FOUND / QUOTA_EXCEEDED, have no place in this domain).
package apperr

import (
	"fmt"
	"net/http"
)

// Wire error kinds, per spec §7.
const (
	InvalidRequest          = "invalid_request"
	InvalidClient           = "invalid_client"
	InvalidGrant            = "invalid_grant"
	InvalidScope            = "invalid_scope"
	UnauthorizedClient      = "unauthorized_client"
	AccessDenied            = "access_denied"
	UnsupportedResponseType = "unsupported_response_type"
	UnsupportedGrantType    = "unsupported_grant_type"
	ServerError             = "server_error"
	TemporarilyUnavailable  = "temporarily_unavailable"
	RateLimited             = "rate_limited"
)

// OAuthError is a standardized application error carrying one of the
// stable wire kinds above plus the HTTP status it maps to.
type OAuthError struct {
	Kind        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	StatusCode  int    `json:"-"`
	// RequestID is attached to server_error responses so operators can
	// correlate a generic client-facing message with detailed logs,
	// without ever returning the details themselves.
	RequestID string `json:"-"`
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Description)
	}
	return e.Kind
}

// New constructs an OAuthError for kind with a client-facing description.
func New(kind, description string) *OAuthError {
	return &OAuthError{
		Kind:        kind,
		Description: description,
		StatusCode:  statusCodeForKind(kind),
	}
}

// Wrap builds a server_error from an internal fault. The wrapped error's
// details are never exposed to the caller — only an opaque request id is
// attached; the caller is expected to log err separately.
func Wrap(requestID string, err error) *OAuthError {
	return &OAuthError{
		Kind:        ServerError,
		Description: "an unexpected error occurred",
		StatusCode:  http.StatusInternalServerError,
		RequestID:   requestID,
	}
}

func statusCodeForKind(kind string) int {
	switch kind {
	case InvalidRequest, InvalidGrant, InvalidScope, UnsupportedResponseType, UnsupportedGrantType:
		return http.StatusBadRequest
	case InvalidClient, AccessDenied:
		return http.StatusUnauthorized
	case UnauthorizedClient:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case TemporarilyUnavailable:
		return http.StatusServiceUnavailable
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WireResponse is the RFC 6749 §5.2 JSON body: {error, error_description?}.
type WireResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ToResponse converts an OAuthError to its RFC 6749 §5.2 JSON shape.
func (e *OAuthError) ToResponse() WireResponse {
	return WireResponse{Error: e.Kind, ErrorDescription: e.Description}
}

// Convenience constructors for the common cases.

func InvalidRequestf(format string, args ...any) *OAuthError {
	return New(InvalidRequest, fmt.Sprintf(format, args...))
}

func InvalidGrantf(format string, args ...any) *OAuthError {
	return New(InvalidGrant, fmt.Sprintf(format, args...))
}

func InvalidClientf(format string, args ...any) *OAuthError {
	return New(InvalidClient, fmt.Sprintf(format, args...))
}

func InvalidScopef(format string, args ...any) *OAuthError {
	return New(InvalidScope, fmt.Sprintf(format, args...))
}
