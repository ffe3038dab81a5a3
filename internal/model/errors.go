package model

import (
	"errors"
	"fmt"
)

// Error is a non-fatal failure surfaced by the reconciliation core.
//
// No error in this taxonomy stops the process: the view degrades to a
// stale-but-consistent state and the failure is logged and reported.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject names the affected entity or frame tag, if any.
	Subject string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeTransport is a connection or send failure. Not retried.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeParse is a malformed inbound payload. The frame is dropped.
	ErrCodeParse ErrorCode = "PARSE"

	// ErrCodeConflict is a temp entity that could not be matched to a
	// confirmation. The entity stays provisional.
	ErrCodeConflict ErrorCode = "RECONCILIATION_CONFLICT"

	// ErrCodePersistence is a failed write to durable storage.
	ErrCodePersistence ErrorCode = "PERSISTENCE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a transport failure.
func NewTransportError(op string, err error) *Error {
	return &Error{Code: ErrCodeTransport, Message: op + " failed", Err: err}
}

// NewParseError reports a malformed inbound frame.
func NewParseError(tag, message string, err error) *Error {
	return &Error{Code: ErrCodeParse, Message: message, Subject: tag, Err: err}
}

// NewConflictError reports an unresolved temp entity.
func NewConflictError(tempID, message string) *Error {
	return &Error{Code: ErrCodeConflict, Message: message, Subject: tempID}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Message: op + " failed", Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTransportError returns true for transport failures, wrapped or not.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsParseError returns true for malformed inbound frames.
func IsParseError(err error) bool { return hasCode(err, ErrCodeParse) }

// IsConflict returns true for unresolved temp entities.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsPersistenceError returns true for storage failures.
func IsPersistenceError(err error) bool { return hasCode(err, ErrCodePersistence) }
