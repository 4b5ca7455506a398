package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies reconciler write failures independent of storage and transport.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"

	// make/model/fuel/body/transmission name without a reference row
	CodeReferenceResolution ErrorCode = "reference_resolution"
	// dependent offers blocked a listing delete
	CodeReferentialIntegrity ErrorCode = "referential_integrity"
)

// Error is the canonical aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

// Error renders "op: message (code)", dropping whichever of op or message is empty.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	head := strings.Trim(strings.TrimSpace(e.Op)+": "+strings.TrimSpace(e.Message), ": ")
	if head == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s (%s)", head, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

// Wrap keeps err's text as the message. Already-coded errors keep their code.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	return NewError(code, op, err.Error(), err)
}

// ReferenceResolution reports a reference name (kind "make", "model", ...) with no row.
func ReferenceResolution(op, kind, name string) error {
	return NewError(CodeReferenceResolution, op, fmt.Sprintf("%s %q not found in reference data", kind, name), nil)
}

// ConcurrentModification reports a lost compare-and-set on a status column.
func ConcurrentModification(op, entity string, expected string) error {
	return NewError(CodeConflict, op, fmt.Sprintf("%s no longer in status %q", entity, expected), nil)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns "" for errors without aggregate semantics.
func CodeOf(err error) ErrorCode {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return ""
}

// MessageOf prefers the aggregate message over the formatted chain.
func MessageOf(err error) string {
	if e, ok := asError(err); ok && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
