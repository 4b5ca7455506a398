package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var statusByCode = map[domainagg.ErrorCode]int{
	domainagg.CodeValidation:           http.StatusBadRequest,
	domainagg.CodeNotFound:             http.StatusNotFound,
	domainagg.CodeConflict:             http.StatusConflict,
	domainagg.CodeInvariantViolation:   http.StatusUnprocessableEntity,
	domainagg.CodeReferenceResolution:  http.StatusUnprocessableEntity,
	domainagg.CodeReferentialIntegrity: http.StatusConflict,
}

// FromError maps an error to an API error. An *Error in the chain wins; aggregate
// codes map to their HTTP status; anything else is a 500 "internal".
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var api *Error
	if errors.As(err, &api) {
		return api
	}
	code := domainagg.CodeOf(err)
	if code == "" {
		return New(http.StatusInternalServerError, string(domainagg.CodeInternal), err)
	}
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return New(status, string(code), err)
}
