package errors

import "errors"

// Code identifies a structured error type used across the launcher.
type Code string

const (
	// Generic codes
	CodeUnknown Code = "unknown"

	// Resolution errors
	CodeNotFound           Code = "not_found"
	CodeConfigurationError Code = "configuration_error"
	CodeUserDeclined       Code = "user_declined"
	CodeVersionProbeFailed Code = "version_probe_failed"

	// Download and filesystem errors
	CodeDownloadFailed  Code = "download_failed"
	CodeNetworkFailure  Code = "network_failure"
	CodeFilesystemError Code = "filesystem_error"

	// CodeInvariantViolation marks internal errors that must never be swallowed.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error (or its unwrap chain) matches the provided code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsUserFacing reports whether the error should be shown to the user rather
// than only written to the debug log.
func IsUserFacing(err error) bool {
	switch CodeOf(err) {
	case CodeConfigurationError, CodeDownloadFailed:
		return true
	default:
		return false
	}
}
