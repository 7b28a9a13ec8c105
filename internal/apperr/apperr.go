// Package apperr defines the error-kind taxonomy used at system boundaries.
// Internal code keeps using plain wrapped errors (fmt.Errorf + %w); apperr
// classifies them once, at the edge, so callers can decide retry/backoff
// policy without string-matching error text.
package apperr

import "fmt"

// Kind is a coarse error classification, not a concrete type hierarchy.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNetwork       Kind = "network"
	KindAuth          Kind = "auth"
	KindRateLimited   Kind = "rate-limited"
	KindStorage       Kind = "storage"
	KindNotFound      Kind = "not-found"
	KindSerialization Kind = "serialization"
	KindChaos         Kind = "chaos-injected"
)

// Error is the structured (code, message) pair surfaced at external boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Retryable reports whether the error kind is retried per the propagation
// policy: network, rate-limited and storage failures are retried up to
// policy; validation, configuration and auth failures are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimited, KindStorage, KindChaos:
		return true
	default:
		return false
	}
}

// Transient reports whether an error (classified or not) should be retried
// by the channel-adapter retry contract (§4.10): 5xx, timeout, network —
// never on 4xx auth or invalid-endpoint style failures.
func Transient(err error) bool {
	var ae *Error
	if ok := As(err, &ae); ok {
		switch ae.Kind {
		case KindNetwork, KindRateLimited, KindStorage, KindChaos:
			return true
		default:
			return false
		}
	}
	return false
}

// As is a small local errors.As to avoid importing errors in call sites
// that only need this one classification check.
func As(err error, target **Error) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
