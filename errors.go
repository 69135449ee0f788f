package lmdbx

import (
	"errors"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Error is the failure shape returned by every fallible operation: a
// numeric code, a human-readable message and (for engine failures) the
// wrapped engine error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped engine error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lmdbx: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("lmdbx: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode carries MDBX-compatible error codes. Engine status codes pass
// through verbatim; codes in the lifecycle block below are produced by this
// layer before any native call is made.
type ErrorCode int

const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ErrKeyExist indicates the key/data pair already exists
	ErrKeyExist ErrorCode = -30799

	// ErrNotFound indicates the key/data pair was not found (EOF)
	ErrNotFound ErrorCode = -30798

	// ErrPageNotFound indicates a requested page was not found (corruption)
	ErrPageNotFound ErrorCode = -30797

	// ErrCorrupted indicates the database is corrupted
	ErrCorrupted ErrorCode = -30796

	// ErrPanic indicates a fatal environment error
	ErrPanic ErrorCode = -30795

	// ErrVersionMismatch indicates DB version doesn't match library
	ErrVersionMismatch ErrorCode = -30794

	// ErrInvalid indicates the file is not a valid MDBX file
	ErrInvalid ErrorCode = -30793

	// ErrMapFull indicates the environment mapsize was reached
	ErrMapFull ErrorCode = -30792

	// ErrDBsFull indicates the environment maxdbs was reached
	ErrDBsFull ErrorCode = -30791

	// ErrReadersFull indicates the environment maxreaders was reached
	ErrReadersFull ErrorCode = -30790

	// ErrTxnFull indicates the transaction has too many dirty pages
	ErrTxnFull ErrorCode = -30788

	// ErrCursorFull indicates cursor stack overflow (corruption)
	ErrCursorFull ErrorCode = -30787

	// ErrPageFull indicates a page has no space (internal error)
	ErrPageFull ErrorCode = -30786

	// ErrIncompatible indicates incompatible operation or flags
	ErrIncompatible ErrorCode = -30784

	// ErrBadRSlot indicates reader slot was corrupted or reused
	ErrBadRSlot ErrorCode = -30783

	// ErrBadTxn indicates the transaction is invalid
	ErrBadTxn ErrorCode = -30782

	// ErrBadValSize indicates invalid key or data size
	ErrBadValSize ErrorCode = -30781

	// ErrBadDBI indicates the DBI handle is invalid
	ErrBadDBI ErrorCode = -30780

	// ErrProblem indicates an unexpected internal error
	ErrProblem ErrorCode = -30779

	// ErrBusy indicates another write transaction is running
	ErrBusy ErrorCode = -30778
)

// Lifecycle error codes. These are never produced by the engine; they are
// raised by the wrapper layer when an operation reaches a dead handle, so
// the native layer is never entered with a freed resource.
const (
	// ErrEnvClosed indicates the environment handle was already closed
	ErrEnvClosed ErrorCode = -30901

	// ErrTxnDone indicates the transaction already committed or aborted
	ErrTxnDone ErrorCode = -30902

	// ErrTableClosed indicates the table handle was already closed
	ErrTableClosed ErrorCode = -30903

	// ErrCursorClosed indicates the cursor handle was already closed
	ErrCursorClosed ErrorCode = -30904
)

// Error descriptions
var errorMessages = map[ErrorCode]string{
	Success:            "success",
	ErrKeyExist:        "key/data pair already exists",
	ErrNotFound:        "key/data pair not found",
	ErrPageNotFound:    "requested page not found",
	ErrCorrupted:       "database is corrupted",
	ErrPanic:           "fatal environment error",
	ErrVersionMismatch: "database version mismatch",
	ErrInvalid:         "file is not a valid MDBX database",
	ErrMapFull:         "environment mapsize limit reached",
	ErrDBsFull:         "environment maxdbs limit reached",
	ErrReadersFull:     "environment maxreaders limit reached",
	ErrTxnFull:         "transaction has too many dirty pages",
	ErrCursorFull:      "cursor stack overflow",
	ErrPageFull:        "page has no space",
	ErrIncompatible:    "incompatible operation or flags",
	ErrBadRSlot:        "reader slot corrupted",
	ErrBadTxn:          "transaction is invalid",
	ErrBadValSize:      "invalid key or value size",
	ErrBadDBI:          "invalid DBI handle",
	ErrProblem:         "unexpected internal error",
	ErrBusy:            "another write transaction is running",

	ErrEnvClosed:    "environment is closed",
	ErrTxnDone:      "transaction already committed or aborted",
	ErrTableClosed:  "table is closed",
	ErrCursorClosed: "cursor is closed",
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// errFromEngine shapes an engine failure into an *Error, preserving the
// engine's numeric code and message verbatim. Codes outside the MDBX range
// (allocation failures, OS errnos) keep their text but map to ErrProblem.
func errFromEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	code := ErrProblem
	var operr *mdbx.OpError
	if errors.As(err, &operr) {
		if errno, ok := operr.Errno.(mdbx.Errno); ok {
			code = ErrorCode(errno)
		}
	} else {
		var errno mdbx.Errno
		if errors.As(err, &errno) {
			code = ErrorCode(errno)
		}
	}
	return &Error{Code: code, Message: op, Err: err}
}

// Code returns the error code from an error, or ErrProblem if the error did
// not originate in this package or the engine.
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrProblem
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return Code(err) == ErrNotFound || mdbx.IsNotFound(err)
}

// IsKeyExist returns true if the error is ErrKeyExist
func IsKeyExist(err error) bool {
	return Code(err) == ErrKeyExist || mdbx.IsKeyExists(err)
}

// IsLifecycle returns true if the error was raised by the handle lifecycle
// layer (operation on a closed or finished handle) rather than the engine.
func IsLifecycle(err error) bool {
	switch Code(err) {
	case ErrEnvClosed, ErrTxnDone, ErrTableClosed, ErrCursorClosed:
		return true
	}
	return false
}

// Strerror returns the message for an error code, matching the engine's own
// translation for engine codes.
func Strerror(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return mdbx.Errno(code).Error()
}
