package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeUnavailable       ErrorCode = "UNAVAILABLE"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeCanceled          ErrorCode = "CANCELED"
)

type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// E constructs a domain error.
func E(code ErrorCode, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// CodeOf extracts the error code, defaulting to INTERNAL.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

var (
	// ErrIndexUnavailable signals the capability index has never been
	// built or the embedding provider is down.
	ErrIndexUnavailable = errors.New("capability index unavailable")
	// ErrLedgerClosed is returned once the audit ledger has drained.
	ErrLedgerClosed = errors.New("audit ledger closed")
	// ErrUnknownTool is returned when a call names a tool that is not
	// registered in the current snapshot.
	ErrUnknownTool = errors.New("unknown tool")
)
