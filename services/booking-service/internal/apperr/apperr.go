// Package apperr classifies failures into the outcomes the HTTP layer reports: user-actionable
// ones carry a message safe to show, storage failures are opaque to callers.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindStorage Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &Error{Kind: KindBadRequest, Message: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }

// Storage wraps an infrastructure failure. Wrapping an already classified error keeps its kind.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are storage failures.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// HTTPStatus maps err to a status code and the message that may be shown to the caller.
func HTTPStatus(err error) (int, string) {
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind == KindStorage {
		return http.StatusInternalServerError, "internal server error"
	}
	switch ae.Kind {
	case KindBadRequest:
		return http.StatusBadRequest, ae.Message
	case KindNotFound:
		return http.StatusNotFound, ae.Message
	case KindConflict:
		return http.StatusConflict, ae.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
