package managed

import (
	"errors"
	"fmt"

	"github.com/roach88/objgraph/internal/ir"
)

// Error is the error type for every failure a context reports.
//
// Codes:
//   - RESOLUTION: unknown entity or field, or a value the field cannot hold
//   - NOT_FOUND: no record with the identifier is visible to the context
//   - VALIDATION: a pending record fails schema validation at save
//   - CONFLICT: an update or insert clashes with the parent's state
//   - STORE_IO: the backing store failed
//   - STORE_UNAVAILABLE: the root has no backing store
//   - CLOSED: the manager owning the context tree was closed
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed ("insert", "save", ...).
	Op string

	// Entity and ID identify the affected record when known.
	Entity string
	ID     ir.ObjectID

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes context errors.
type ErrorCode string

const (
	CodeResolution       ErrorCode = "RESOLUTION"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidation       ErrorCode = "VALIDATION"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeStoreIO          ErrorCode = "STORE_IO"
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	CodeClosed           ErrorCode = "CLOSED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNotFound = &Error{Code: CodeNotFound}
	ErrNoStore  = &Error{Code: CodeStoreUnavailable}
	ErrClosed   = &Error{Code: CodeClosed}
)

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	switch {
	case e.Entity != "" && e.ID != "":
		msg += fmt.Sprintf(" (entity=%s, id=%s)", e.Entity, e.ID)
	case e.Entity != "":
		msg += fmt.Sprintf(" (entity=%s)", e.Entity)
	case e.ID != "":
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Err == nil
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsResolution reports whether err is a RESOLUTION error.
func IsResolution(err error) bool { return CodeOf(err) == CodeResolution }

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

func newError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// storeError classifies an error returned by the backing store.
func storeError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	code := CodeStoreIO
	switch {
	case errors.Is(err, ir.ErrRecordNotFound):
		code = CodeNotFound
	case errors.Is(err, ir.ErrRecordConflict):
		code = CodeConflict
	}
	return &Error{Code: code, Op: op, Err: err}
}
