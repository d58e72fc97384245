// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Kind names one of the failure categories the pipeline can surface.
// Every error leaving the core maps to exactly one Kind.
type Kind string

const (
	// Repository-scoped kinds. These are soft failures: they are collected
	// per repository and never abort a run.
	KindRepositoryNotFound        Kind = "repository_not_found"
	KindRepositoryAccessDenied    Kind = "repository_access_denied"
	KindHistoryBackendUnavailable Kind = "history_backend_unavailable"

	// Run-scoped kinds. Any of these aborts the current call.
	KindTemplateError       Kind = "template_error"
	KindAuthenticationError Kind = "authentication_error"
	KindRateLimitError      Kind = "rate_limit_error"
	KindBackendServerError  Kind = "backend_server_error"
	KindNetworkError        Kind = "network_error"
	KindResponseShapeError  Kind = "response_shape_error"
	KindCancelled           Kind = "cancelled"
)

// Error is a classified pipeline error. StatusCode carries the
// backend-reported HTTP status when one exists, zero otherwise.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s (status %d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus creates a classified error carrying a backend HTTP status.
func WithStatus(kind Kind, statusCode int, message string) *Error {
	return &Error{Kind: kind, Message: message, StatusCode: statusCode}
}

// KindOf returns the Kind of err, or the empty Kind when err is not a
// classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is a classified error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRepositoryScoped reports whether err belongs to the soft, per-repository
// failure tier.
func IsRepositoryScoped(err error) bool {
	switch KindOf(err) {
	case KindRepositoryNotFound, KindRepositoryAccessDenied, KindHistoryBackendUnavailable:
		return true
	}
	return false
}
