package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

var (
	ErrValidation = errors.New("aggregate validation")
	ErrInvariant  = errors.New("aggregate invariant violation")
	// ErrConflict is the ConcurrentModificationError sentinel.
	ErrConflict  = errors.New("aggregate conflict")
	ErrRetryable = errors.New("aggregate retryable")
)

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

func tagged(sentinel error, msg string) error {
	return errors.Join(sentinel, errors.New(strings.TrimSpace(msg)))
}

var sentinelCodes = []struct {
	err  error
	code domainagg.ErrorCode
}{
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

// Postgres SQLSTATE classes the reconciler reacts to.
var sqlStateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,             // unique_violation
	"23503": domainagg.CodeReferentialIntegrity, // foreign_key_violation
	"40001": domainagg.CodeRetryable,            // serialization_failure
	"40P01": domainagg.CodeRetryable,            // deadlock_detected
	"55P03": domainagg.CodeRetryable,            // lock_not_available
}

// Driver messages without a typed error, mostly from sqlite.
var messageHints = []struct {
	code  domainagg.ErrorCode
	parts []string
}{
	{domainagg.CodeConflict, []string{"duplicate key", "unique constraint failed", "already exists"}},
	{domainagg.CodeReferentialIntegrity, []string{"foreign key constraint"}},
	{domainagg.CodeRetryable, []string{"deadlock", "serialization", "database is locked", "timeout", "temporar"}},
}

// MapError maps infrastructure and sentinel failures to aggregate codes.
// Errors that already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil || domainagg.CodeOf(err) != "" {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := sqlStateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, h := range messageHints {
		for _, p := range h.parts {
			if strings.Contains(msg, p) {
				return h.code
			}
		}
	}
	return domainagg.CodeInternal
}
