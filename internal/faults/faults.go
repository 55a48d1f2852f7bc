// Package faults defines the typed failure outcomes components return
// instead of raising uncaught errors. Orchestrators classify every failure
// into one of these kinds before returning it to the HTTP layer.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// InputError means the caller supplied bad or missing data.
	InputError Kind = "input_error"
	// DependencyUnavailable means an AI provider failed to initialize and
	// the feature it backs is disabled for the process lifetime.
	DependencyUnavailable Kind = "dependency_unavailable"
	// ProviderError is a transient failure calling a provider: quota,
	// timeout, auth, unexpected response shape.
	ProviderError Kind = "provider_error"
	// ContentBlocked means the provider refused to answer on content-policy
	// grounds. Not retryable the way a ProviderError is.
	ContentBlocked Kind = "content_blocked"
	// IntegrityError means persisted state disagrees with live state,
	// e.g. an index whose dimension does not match the embedding provider.
	IntegrityError Kind = "integrity_error"
	// NotFound means an expected file or session artifact is missing.
	NotFound Kind = "not_found"
)

// Fault is an error carrying a Kind and a user-displayable message.
// The message never exposes internals; Err holds the underlying cause
// for logs.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// New creates a Fault with a formatted message.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a Fault keeping err as the underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) a Fault, or
// ProviderError as the conservative default for unknown errors.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ProviderError
}

// Is reports whether err is a Fault of the given kind.
func Is(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}

// UserMessage returns the display message of err if it is a Fault,
// else a generic message that leaks nothing.
func UserMessage(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		switch f.Kind {
		case ContentBlocked:
			return "My response was blocked due to content safety filters. Please try rephrasing."
		case DependencyUnavailable:
			return f.Message + ". Please retry later or check the service configuration."
		}
		return f.Message
	}
	return "An unexpected error occurred. Please try again."
}
