package coordinator

import (
	"errors"
	"fmt"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// Error represents a failure detected at the coordinator's API boundary.
//
// Coordinator errors include:
//   - Unknown handle: an operation named an id that was never registered
//   - Closed: an operation arrived after Close
//   - Handle failure: a handle capability call returned an error
//
// Error includes structured fields for diagnostics; callers branch on Code
// rather than matching message text.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Item identifies the affected handle, when there is one.
	Item feed.ItemID

	// Err is the underlying cause, for handle failures.
	Err error
}

// ErrorCode categorizes coordinator errors.
type ErrorCode string

const (
	// ErrCodeNotRegistered indicates the named id has no registered handle.
	ErrCodeNotRegistered ErrorCode = "NOT_REGISTERED"

	// ErrCodeClosed indicates the coordinator has been closed.
	ErrCodeClosed ErrorCode = "CLOSED"

	// ErrCodeInvalidHandle indicates a nil handle or empty id at registration.
	ErrCodeInvalidHandle ErrorCode = "INVALID_HANDLE"

	// ErrCodeHandleFailure indicates a handle capability call failed.
	ErrCodeHandleFailure ErrorCode = "HANDLE_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s (item=%s)", e.Code, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotRegistered reports whether err is a NOT_REGISTERED coordinator error.
// Uses errors.As to handle wrapped errors.
func IsNotRegistered(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeNotRegistered
	}
	return false
}

// IsClosed reports whether err is a CLOSED coordinator error.
func IsClosed(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeClosed
	}
	return false
}

// newNotRegisteredError creates an Error for an operation on an unknown id.
func newNotRegisteredError(id feed.ItemID) *Error {
	return &Error{
		Code:    ErrCodeNotRegistered,
		Message: "no handle registered for id",
		Item:    id,
	}
}

// newClosedError creates an Error for an operation after Close.
func newClosedError() *Error {
	return &Error{
		Code:    ErrCodeClosed,
		Message: "coordinator is closed",
	}
}
