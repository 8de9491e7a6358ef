// Package apperr defines the typed error kinds returned by the pacing engine.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding how to react to it.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidTransition
	KindInvariantViolation
	KindStorageUnavailable
	KindRelayUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindRelayUnavailable:
		return "relay_unavailable"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind. Match with errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrRelayUnavailable   = &Error{Kind: KindRelayUnavailable}
)

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg = e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match on Kind so wrapped errors compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound reports an unknown task, graveyard entry or record.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransition reports a status outside the pipeline enum.
func InvalidTransition(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invariant reports a broken data invariant.
func Invariant(op, format string, args ...any) error {
	return &Error{Kind: KindInvariantViolation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a transient persistence failure.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// Relay wraps a notification delivery failure.
func Relay(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindRelayUnavailable, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
