package models

// ErrorCode classifies a failed shared passwords operation.
type ErrorCode string

const (
	// CodeCancelled means the user dismissed the system UI.
	CodeCancelled ErrorCode = "CANCELLED"
	// CodeFailed means the platform rejected the operation.
	CodeFailed ErrorCode = "FAILED"
	// CodeNotSupported means the feature is unavailable on this host.
	CodeNotSupported ErrorCode = "NOT_SUPPORTED"
	// CodeInvalidParameters means the request was malformed.
	CodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	// CodeNoCredentials means nothing matching the request is stored.
	CodeNoCredentials ErrorCode = "NO_CREDENTIALS"
	// CodeDomainNotConfigured means no domain was given and none is configured.
	CodeDomainNotConfigured ErrorCode = "DOMAIN_NOT_CONFIGURED"
	// CodeUnknown covers everything else.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// ErrorCodes lists every member of the closed error taxonomy.
var ErrorCodes = []ErrorCode{
	CodeCancelled,
	CodeFailed,
	CodeNotSupported,
	CodeInvalidParameters,
	CodeNoCredentials,
	CodeDomainNotConfigured,
	CodeUnknown,
}

// Valid reports whether c belongs to the taxonomy.
func (c ErrorCode) Valid() bool {
	for _, known := range ErrorCodes {
		if c == known {
			return true
		}
	}
	return false
}

// SharedPasswordsError is the only error type returned by the facade.
type SharedPasswordsError struct {
	Code    ErrorCode
	Message string
	cause   error
}

// NewError builds a SharedPasswordsError with no underlying cause.
func NewError(code ErrorCode, message string) *SharedPasswordsError {
	return &SharedPasswordsError{Code: code, Message: message}
}

// WrapError builds a SharedPasswordsError that unwraps to cause.
func WrapError(code ErrorCode, message string, cause error) *SharedPasswordsError {
	return &SharedPasswordsError{Code: code, Message: message, cause: cause}
}

// Error returns the message verbatim.
func (e *SharedPasswordsError) Error() string {
	return e.Message
}

// ErrorCode exposes the code so that already-normalized errors pass
// through normalization unchanged.
func (e *SharedPasswordsError) ErrorCode() string {
	return string(e.Code)
}

// Unwrap returns the backend error this one was built from, if any.
func (e *SharedPasswordsError) Unwrap() error {
	return e.cause
}
