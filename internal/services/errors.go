package services

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrorKind classifies ledger failures so callers branch on structure, not on
// error-message substrings.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindDuplicate
	KindInvalidState
	KindNotFound
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindDuplicate:
		return "DUPLICATE"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindStorage:
		return "STORAGE"
	}
	return "UNKNOWN"
}

// LedgerError carries a kind alongside the message and, for storage failures,
// the wrapped driver error.
type LedgerError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func validationErr(format string, args ...any) error {
	return &LedgerError{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func duplicateErr(key string) error {
	return &LedgerError{Kind: KindDuplicate, Msg: fmt.Sprintf("idempotency key already used: %s", key)}
}

func invalidStateErr(format string, args ...any) error {
	return &LedgerError{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) error {
	return &LedgerError{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func storageErr(msg string, err error) error {
	return &LedgerError{Kind: KindStorage, Msg: msg, Err: err}
}

// ErrKind extracts the kind from err, or KindStorage when err is not a
// LedgerError (raw driver errors are storage failures by definition).
func ErrKind(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindStorage
}

// IsDuplicate reports whether err is an idempotency-key collision, either our
// own kind or a raw Postgres unique violation.
func IsDuplicate(err error) bool {
	if ErrKind(err) == KindDuplicate {
		return true
	}
	return isUniqueViolation(err)
}

// unique_violation per the Postgres error code table.
const pqUniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
