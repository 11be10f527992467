package types

import "fmt"

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

const (
	// Configuration errors: caller selected something the catalog does not
	// know. Fatal to that call only; raised before any network I/O.
	ErrUnknownProvider ErrorCode = "UNKNOWN_PROVIDER"
	ErrUnknownModel    ErrorCode = "UNKNOWN_MODEL"

	// ErrAuth means the credential was missing or rejected by the provider.
	// The secret itself is never embedded in the error.
	ErrAuth ErrorCode = "AUTH"

	// ErrNetwork is a transport-level failure with no response obtained.
	ErrNetwork ErrorCode = "NETWORK"

	// ErrTimeout means the request deadline elapsed and the in-flight call
	// was aborted.
	ErrTimeout ErrorCode = "TIMEOUT"

	// ErrHTTP is a non-2xx response that is not an authentication failure,
	// carrying the status and the provider's message when parseable.
	ErrHTTP ErrorCode = "HTTP"

	// ErrParse is a malformed response or stream frame.
	ErrParse ErrorCode = "PARSE"
)

// Error represents a structured gateway error with code, message and
// transport metadata. Provider identifies which upstream produced it;
// secrets are never included.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider id.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsConfiguration reports whether err is an unknown-provider or
// unknown-model configuration error.
func IsConfiguration(err error) bool {
	code := GetErrorCode(err)
	return code == ErrUnknownProvider || code == ErrUnknownModel
}

// IsAuth reports whether err is a credential error.
func IsAuth(err error) bool { return GetErrorCode(err) == ErrAuth }

// IsTimeout reports whether err is a deadline error.
func IsTimeout(err error) bool { return GetErrorCode(err) == ErrTimeout }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
