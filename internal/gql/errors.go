package gql

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for GraphQL error classification.
// Use errors.Is(err, gql.ErrUnauthenticated) to check.
var (
	// ErrUnauthenticated: the access token is missing, expired, or invalid.
	// Recoverable exactly once per operation via token renewal.
	ErrUnauthenticated = errors.New("gql: unauthenticated")

	// ErrPermissionDenied: valid identity, insufficient rights. Never retried.
	ErrPermissionDenied = errors.New("gql: permission denied")

	// ErrValidation: the operation's input was malformed. Never retried.
	ErrValidation = errors.New("gql: validation failed")

	// ErrNotFound: the referenced resource does not exist.
	ErrNotFound = errors.New("gql: not found")

	// ErrConflict: the operation collides with existing state.
	ErrConflict = errors.New("gql: conflict")

	// ErrServer: the server failed executing the operation.
	ErrServer = errors.New("gql: server error")

	// ErrTransport: the request never produced a GraphQL response (network
	// unreachable, malformed body). Retry policy is the caller's concern.
	ErrTransport = errors.New("gql: transport error")

	// ErrAuthExpired is the terminal authentication failure surfaced after
	// token renewal could not rescue an unauthenticated operation. The
	// session has already been cleared when this is returned.
	ErrAuthExpired = errors.New("gql: authentication expired, sign in again")

	// ErrStreamClosed is returned by Stream.Next after the stream completes.
	ErrStreamClosed = errors.New("gql: stream closed")
)

// Error extension codes emitted by the API.
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeAuthentication  = "AUTHENTICATION_ERROR"
	codeAuthorization   = "AUTHORIZATION_ERROR"
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND_ERROR"
	codeConflict        = "CONFLICT_ERROR"
	codeInternal        = "INTERNAL_SERVER_ERROR"
)

// APIError is a single GraphQL field error with its extension code mapped
// to a sentinel for errors.Is checks.
type APIError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Path) > 0 {
		parts := make([]string, len(e.Path))
		for i, p := range e.Path {
			parts[i] = fmt.Sprint(p)
		}

		return fmt.Sprintf("gql: %s (path: %s)", e.Message, strings.Join(parts, "."))
	}

	return "gql: " + e.Message
}

// Unwrap maps the error's extension code onto a sentinel.
func (e *APIError) Unwrap() error {
	return classifyCode(e.Code())
}

// Code returns the error's extensions.code value, or "" if absent.
func (e *APIError) Code() string {
	if e.Extensions == nil {
		return ""
	}

	code, _ := e.Extensions["code"].(string)

	return code
}

// classifyCode maps an extension code to a sentinel error. Unknown codes
// classify as server errors — the caller cannot act on them anyway.
func classifyCode(code string) error {
	switch code {
	case codeUnauthenticated, codeAuthentication:
		return ErrUnauthenticated
	case codeAuthorization:
		return ErrPermissionDenied
	case codeValidation:
		return ErrValidation
	case codeNotFound:
		return ErrNotFound
	case codeConflict:
		return ErrConflict
	case codeInternal:
		return ErrServer
	default:
		return ErrServer
	}
}

// isUnauthenticated reports whether any error in the response is
// authentication-classified.
func isUnauthenticated(resp *Response) bool {
	for _, apiErr := range resp.Errors {
		if errors.Is(apiErr, ErrUnauthenticated) {
			return true
		}
	}

	return false
}
