// Package apperr classifies failures so handlers can answer each one with a
// single private reply.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindConflict
	KindNotFound
	KindInvalid
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Conflict(msg string) error { return &Error{Kind: KindConflict, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

func Invalid(msg string) error { return &Error{Kind: KindInvalid, Message: msg} }

// Cooldown is a conflict that tells the caller how long to wait.
func Cooldown(msg string, remaining time.Duration) error {
	return &Error{Kind: KindConflict, Message: msg, RetryAfter: remaining}
}

func Collaborator(msg string, err error) error {
	return &Error{Kind: KindCollaborator, Message: msg, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// UserMessage is the text shown to the actor. Collaborator and unclassified
// failures never leak their cause.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindCollaborator || e.Kind == KindUnknown {
		return "Something went wrong while talking to Discord. Please try again later."
	}
	return e.Message
}
