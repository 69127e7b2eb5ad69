package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a provider-facing failure so callers can branch on the
// class of error instead of the provider that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks bad caller input. Never retried.
	KindValidation
	// KindAuthentication marks an invalid credential or signature.
	KindAuthentication
	KindNotFound
	// KindConflict marks duplicates and already-processed events.
	KindConflict
	// KindUnavailable marks rate limits and downstream server errors that
	// survived the retry policy.
	KindUnavailable
	// KindConfiguration marks a missing required secret. Fails fast.
	KindConfiguration
	// KindBusinessRule marks operations the domain forbids, such as a
	// second capture for the same intent.
	KindBusinessRule
	// KindProvider is the catch-all for unexpected provider responses.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindConfiguration:
		return "configuration"
	case KindBusinessRule:
		return "business_rule"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Error carries the failure class, the logical operation that produced it,
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the failure class from err, walking the wrap chain.
// Errors outside the taxonomy report KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err belongs to the given class.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may retry the operation later
// without operator intervention.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
