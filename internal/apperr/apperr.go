// Package apperr defines the closed set of failures the gateway core signals
// and their deterministic mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with one variant of the gateway error taxonomy.
type Kind string

const (
	KindValidationFailed        Kind = "validation_failed"
	KindUserAlreadyExists       Kind = "user_already_exists"
	KindProviderConflict        Kind = "provider_conflict"
	KindWorkspaceCreationFailed Kind = "workspace_creation_failed"
	KindUnauthenticated         Kind = "unauthenticated"
	KindAccessDenied            Kind = "access_denied"
	KindStoreUnavailable        Kind = "store_unavailable"
	KindInvalidCredentials      Kind = "invalid_credentials"
	KindNotFound                Kind = "not_found"
	KindRoleNotAllowed          Kind = "role_not_allowed"
	KindMembershipExists        Kind = "membership_exists"
	KindInternal                Kind = "internal"
)

// ErrConstraintViolation marks store failures caused by a unique, primary key
// or foreign key constraint.
var ErrConstraintViolation = errors.New("apperr: constraint violation")

const internalMessage = "Internal server error"

var defaultMessages = map[Kind]string{
	KindValidationFailed:        "Invalid request",
	KindUserAlreadyExists:       "User already exists",
	KindProviderConflict:        "This email is linked to another provider",
	KindWorkspaceCreationFailed: "Workspace could not be created",
	KindUnauthenticated:         "Unauthorized: No User ID",
	KindAccessDenied:            "Access Denied",
	KindStoreUnavailable:        "Service temporarily unavailable",
	KindInvalidCredentials:      "Invalid email or password",
	KindNotFound:                "Resource not found",
	KindRoleNotAllowed:          "Role not allowed",
	KindMembershipExists:        "User is already a member of this workspace",
	KindInternal:                internalMessage,
}

// Error is a typed gateway failure. The code identifies the failing
// operation, the message is safe to show to callers and the cause is kept for
// logs only.
type Error struct {
	kind    Kind
	code    string
	message string
	err     error
}

// New builds an Error whose code is "<operation>.<reason>". An empty message
// falls back to the default public message of the kind.
func New(kind Kind, operation, reason, message string, cause error) *Error {
	if message == "" {
		message = defaultMessages[kind]
	}
	return &Error{
		kind:    kind,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
		err:     cause,
	}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind reports the taxonomy variant.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code reports the machine readable operation code.
func (e *Error) Code() string {
	return e.code
}

// Message reports the caller-safe message.
func (e *Error) Message() string {
	return e.message
}

// KindOf returns the kind of the first *Error in the chain, or "" when err
// carries no gateway kind.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.kind
	}
	return ""
}

// Is reports whether err carries the provided kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error onto the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindUserAlreadyExists, KindProviderConflict, KindMembershipExists:
		return http.StatusConflict
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindAccessDenied, KindRoleNotAllowed:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindWorkspaceCreationFailed:
		if errors.Is(err, ErrConstraintViolation) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may cross the service boundary. Errors
// without a gateway kind never expose their content.
func PublicMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.message != "" {
		return typed.message
	}
	return internalMessage
}
