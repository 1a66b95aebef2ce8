// Package apperr defines the error taxonomy shared by the watcher components.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuth         Kind = "auth"
	KindRateLimit    Kind = "rate_limit"
	KindTransient    Kind = "transient"
	KindUnclassified Kind = "unclassified"
	KindConfig       Kind = "config"
	KindTransport    Kind = "transport"
)

// Error is a classified failure. Payload carries the raw upstream body (if any)
// so operators can see exactly what the portal answered.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Payload string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	if e.Payload != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Kind, e.Op, e.Message, e.Payload)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap classifies err. An already classified error is returned unchanged.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WithPayload returns e with the raw diagnostic payload attached.
func (e *Error) WithPayload(payload []byte) *Error {
	if e == nil {
		return nil
	}
	e.Payload = string(payload)
	return e
}

// Auth is shorthand for a login/token failure.
func Auth(op, message string, cause error) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: message, Cause: cause}
}

// IsKind checks whether the first classified error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first classified error in the chain, or "".
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

// PayloadOf returns the raw payload attached anywhere in the chain.
func PayloadOf(err error) string {
	for err != nil {
		var target *Error
		if !errors.As(err, &target) {
			return ""
		}
		if target.Payload != "" {
			return target.Payload
		}
		err = target.Cause
	}
	return ""
}
