package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeInvalidInput indicates a missing or malformed argument.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates an unknown batch, bookmark, or history id.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyProcessed indicates the batch is no longer pending_review.
	CodeAlreadyProcessed ErrorCode = "ALREADY_PROCESSED"

	// CodeInvalidReference indicates a history snapshot that belongs to
	// another bookmark.
	CodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	// CodeStoreAccess indicates the canonical store could not be read or
	// written. Nothing was committed.
	CodeStoreAccess ErrorCode = "STORE_ACCESS"

	// CodeSourceRead indicates a reader could not produce records.
	CodeSourceRead ErrorCode = "SOURCE_READ"
)

// Error is the error type returned by every engine operation.
//
// Every Error leaves the store as it was before the call.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound returns true if err is a NOT_FOUND engine error.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsAlreadyProcessed returns true if err is an ALREADY_PROCESSED engine error.
func IsAlreadyProcessed(err error) bool {
	return IsCode(err, CodeAlreadyProcessed)
}

// SourceReadError wraps a reader failure.
func SourceReadError(source string, err error) *Error {
	return &Error{
		Code:    CodeSourceRead,
		Message: fmt.Sprintf("read source %q", source),
		Details: map[string]string{"source": source},
		Err:     err,
	}
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
		Details: map[string]string{kind + "_id": id},
	}
}

func alreadyProcessed(batchID string, status ir.BatchStatus) *Error {
	return &Error{
		Code:    CodeAlreadyProcessed,
		Message: fmt.Sprintf("batch %s is %s", batchID, status),
		Details: map[string]string{"batch_id": batchID, "status": string(status)},
	}
}

func invalidReference(historyID, bookmarkID, owner string) *Error {
	return &Error{
		Code:    CodeInvalidReference,
		Message: fmt.Sprintf("history %s belongs to bookmark %s, not %s", historyID, owner, bookmarkID),
		Details: map[string]string{
			"history_id":  historyID,
			"bookmark_id": bookmarkID,
			"owner_id":    owner,
		},
	}
}

// storeAccess wraps a store failure. Engine errors returned from inside a
// transaction pass through unchanged.
func storeAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: CodeStoreAccess, Message: op, Err: err}
}

// lookup maps a store lookup failure to NOT_FOUND or STORE_ACCESS.
func lookup(kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(kind, id)
	}
	return storeAccess("load "+kind, err)
}
