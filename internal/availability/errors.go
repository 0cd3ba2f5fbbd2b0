package availability

import "fmt"

// Stable error codes. The transport layer alone maps these to HTTP statuses;
// nothing in the engine or its callers matches on message text.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeServiceNotFound = "SERVICE_NOT_FOUND"
	CodeNoClinicHours   = "NO_CLINIC_HOURS"
	CodeSlotTaken       = "SLOT_TAKEN"
	CodeUnavailable     = "DEPENDENCY_UNAVAILABLE"
)

// Error is the engine's structured error: a stable code, a human-readable
// message and optional metadata for the caller.
type Error struct {
	Code    string
	Message string
	Meta    map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewServiceNotFound(code string) *Error {
	return &Error{
		Code:    CodeServiceNotFound,
		Message: "unknown service code",
		Meta:    map[string]string{"service_code": code},
	}
}

func NewDependencyError(what string, cause error) *Error {
	return &Error{
		Code:    CodeUnavailable,
		Message: what + " lookup failed",
		cause:   cause,
	}
}
