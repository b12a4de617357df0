package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Kind classifies an error so callers can react without string matching.
type Kind string

// Supported error kinds.
const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindValidation      Kind = "validation_error"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Error is the typed failure returned by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons. They match any *Error of the same kind.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrInternal        = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (or equal error) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New builds an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated reports a missing, malformed, expired or revoked credential.
func Unauthenticated(message string) error {
	return New(KindUnauthenticated, message)
}

// Forbidden reports an authenticated actor without the required role or permission.
func Forbidden(message string) error {
	return New(KindForbidden, message)
}

// NotFound reports that entity does not resolve to a live row.
func NotFound(entity string) error {
	return Newf(KindNotFound, "%s not found", entity)
}

// Conflict reports a duplicate or a concurrent modification.
func Conflict(message string) error {
	return New(KindConflict, message)
}

// InvalidState reports an operation that is not valid for the current lifecycle state.
func InvalidState(message string) error {
	return New(KindInvalidState, message)
}

// Validation reports malformed or out-of-range input.
func Validation(message string) error {
	return New(KindValidation, message)
}

// Internal wraps an unexpected failure, typically from storage.
func Internal(err error) error {
	return Wrap(KindInternal, err, "internal error")
}

// KindOf resolves the kind of err. Validator and gorm sentinel errors are
// classified; everything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return KindValidation
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindConflict
	}

	return KindInternal
}

// FromStorage converts a repository error into a typed error for entity.
func FromStorage(err error, entity string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound(entity)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(KindConflict, err, entity+" already exists")
	default:
		return Internal(err)
	}
}
