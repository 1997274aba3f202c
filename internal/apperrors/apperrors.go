// Package apperrors defines the error taxonomy shared by every subsystem. Errors carry
// a Kind and an operation name so call sites across packages can branch on Kind()
// instead of matching wrapped sentinel values per package.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy: surface, fall back, or abort.
type Kind string

const (
	InvalidArgument Kind = "invalid_argument"
	NotFound        Kind = "not_found"
	IntegrityError  Kind = "integrity_error"
	Degraded        Kind = "degraded"
	Internal        Kind = "internal"
)

// Error wraps an underlying error with an operation name and a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperrors.New(k, "", nil)) match on Kind alone when Err is nil,
// and otherwise defers to the wrapped error's own Is/== semantics.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		if t.Err == nil {
			return e.Kind == t.Kind
		}
		return e.Kind == t.Kind && errors.Is(e.Err, t.Err)
	}
	return errors.Is(e.Err, target)
}

// New builds an Error for the given kind, operation, and cause. A nil cause yields a
// sentinel usable with errors.Is purely on Kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of reports the Kind of err if it (or something it wraps) is an *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

// Sentinels for the common no-cause checks. Err is nil on purpose: per (*Error).Is,
// a nil-cause target matches any error of the same Kind regardless of its own cause.
var (
	ErrNotFound    = New(NotFound, "", nil)
	ErrIntegrity   = New(IntegrityError, "", nil)
	ErrDegraded    = New(Degraded, "", nil)
	ErrInvalidArgs = New(InvalidArgument, "", nil)
	ErrInternal    = New(Internal, "", nil)
)
