package helper

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an Error so callers can branch on the failure kind.
type ErrorCode string

const (
	// CodeInternal is the default for wrapped errors without a specific class.
	CodeInternal ErrorCode = "internal"
	// CodeInvalidInput marks malformed caller input, rejected before any store call.
	CodeInvalidInput ErrorCode = "invalid_input"
	// CodeStoreUnavailable marks backend connectivity or transport failures.
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	// CodePartialPromotion marks a promotion that failed after its first write.
	// Safe to retry, all promotion writes are idempotent upserts.
	CodePartialPromotion ErrorCode = "partial_promotion"
)

// Error wraps an underlying error with the operation that failed and a code.
type Error struct {
	Op   string
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation that failed.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Code: CodeInternal, Err: err}
}

// NewCodeError wraps err with the operation that failed and an explicit code.
func NewCodeError(op string, code ErrorCode, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		e := &Error{}
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
