// Package domainerrors provides coded errors for the updater's domain logic.
// Services create them, transports translate the code into a status, and
// callers branch on the code with Is without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are stable API; messages are not.
type Code string

const (
	// CodeBadRequest marks invalid caller input.
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks a request body that decoded but failed field
	// validation.
	CodeValidation Code = "validation_error"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized marks a missing or invalid service token.
	CodeUnauthorized Code = "unauthorized"
	// CodeConflict marks an operation rejected because of concurrent state,
	// e.g. an update cycle already in flight.
	CodeConflict Code = "conflict"
	// CodeInternal marks unexpected failures with no better classification.
	CodeInternal Code = "internal_error"

	// CodeMetadataUnavailable marks a task whose remote or subscription
	// metadata could not be resolved. Task-fatal.
	CodeMetadataUnavailable Code = "metadata_unavailable"
	// CodePatchFailed marks a patch that was published but could not be
	// applied cleanly. Task-fatal, nothing is committed.
	CodePatchFailed Code = "patch_failed"
	// CodeParseFailure marks fetched content with no recoverable version
	// header or a checksum mismatch. Task-fatal.
	CodeParseFailure Code = "parse_failure"
	// CodeStorageUnavailable marks version or content store I/O failures.
	// Task-fatal, not retried within the cycle.
	CodeStorageUnavailable Code = "storage_unavailable"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two coded errors by code and message, so callers
// can compare against a freshly constructed error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code of err, or CodeInternal when err carries
// no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer responds
// with. Task-level update failures intentionally map to 502: the upstream
// list, not this service, is the unhealthy party.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeMetadataUnavailable, CodePatchFailed, CodeParseFailure:
		return http.StatusBadGateway
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
