package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a request error.
type ErrorType int

// Error type constants. Network, Timeout, Decode and Canceled never carry a
// status code; every other type originates from a non-2xx response.
const (
	// ErrorTypeUnknown indicates an unclassified non-2xx response.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates the request never produced a response.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates the server answered 429.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates rejected credentials, signature or tonce.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a 5xx response.
	ErrorTypeServerError
	// ErrorTypeInvalidOrder indicates the exchange refused to create or cancel an order.
	ErrorTypeInvalidOrder
	// ErrorTypeDecode indicates a 2xx body that could not be decoded.
	ErrorTypeDecode
	// ErrorTypeCanceled indicates the caller canceled the request context.
	ErrorTypeCanceled
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INVALID_ORDER",
		"DECODE",
		"CANCELED",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a call.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when a signed call has no key pair to sign with.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrUnsupportedMethod is returned for methods other than GET and POST.
	ErrUnsupportedMethod = errors.New("unsupported http method")
	// ErrInvalidPath is returned for empty, relative or query-carrying paths.
	ErrInvalidPath = errors.New("invalid endpoint path")
	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// RequestError is the error returned for every failed call.
type RequestError struct {
	Type ErrorType `json:"type"`
	// StatusCode is zero for transport and decode failures.
	StatusCode int `json:"status_code"`
	// Code is the Graviex error code from the response envelope for status
	// errors, or one of the ErrCode constants for failures without a response.
	Code    string `json:"code"`
	Message string `json:"message"`
	// Body is the raw response body when one was received.
	Body      string    `json:"body,omitempty"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 && e.Code != "" {
		return fmt.Sprintf("[graviex] %s %s %s (%d/%s): %s",
			e.Method, e.Path, e.Type, e.StatusCode, e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("[graviex] %s %s %s (%d): %s",
			e.Method, e.Path, e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("[graviex] %s %s %s: %s", e.Method, e.Path, e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// WithCode sets the error code and returns the error for chaining.
func (e *RequestError) WithCode(code ErrorCode) *RequestError {
	e.Code = string(code)
	return e
}

// NewTransportError wraps a failure that happened before any response arrived.
func NewTransportError(method, path string, errorType ErrorType, err error) *RequestError {
	return &RequestError{
		Type:      errorType,
		Code:      string(transportCode(errorType)),
		Message:   err.Error(),
		Method:    method,
		Path:      path,
		Timestamp: time.Now(),
		Err:       err,
	}
}

func transportCode(t ErrorType) ErrorCode {
	switch t {
	case ErrorTypeTimeout:
		return ErrCodeTimeout
	case ErrorTypeCanceled:
		return ErrCodeCanceled
	default:
		return ErrCodeNetwork
	}
}

// NewStatusError builds an error for a non-2xx response, keeping the raw body.
func NewStatusError(method, path string, errorType ErrorType, statusCode int, body string) *RequestError {
	return &RequestError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    body,
		Body:       body,
		Method:     method,
		Path:       path,
		Timestamp:  time.Now(),
	}
}

// NewDecodeError wraps a failure to decode a successful response body.
func NewDecodeError(method, path, body string, err error) *RequestError {
	return &RequestError{
		Type:      ErrorTypeDecode,
		Code:      string(ErrCodeDecode),
		Message:   err.Error(),
		Body:      body,
		Method:    method,
		Path:      path,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// NewBadRequestError reports a request rejected locally before dispatch.
func NewBadRequestError(method, path string, err error) *RequestError {
	return &RequestError{
		Type:      ErrorTypeBadRequest,
		Code:      string(ErrCodeInvalidParams),
		Message:   err.Error(),
		Method:    method,
		Path:      path,
		Timestamp: time.Now(),
		Err:       err,
	}
}

func errorTypeOf(err error) (ErrorType, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Type, true
	}
	return ErrorTypeUnknown, false
}

// IsNetworkError returns true if the request failed before a response arrived.
func IsNetworkError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeNetwork
}

// IsTimeoutError returns true if the request hit its deadline.
func IsTimeoutError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeTimeout
}

// IsCanceledError returns true if the caller canceled the request.
func IsCanceledError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeCanceled
}

// IsDecodeError returns true if a successful body could not be decoded.
func IsDecodeError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeDecode
}

// IsAuthenticationError returns true if the server rejected the credentials,
// signature or tonce.
func IsAuthenticationError(err error) bool {
	t, ok := errorTypeOf(err)
	return ok && t == ErrorTypeAuthentication
}

// IsStatusError returns true if the server answered with a non-2xx status.
func IsStatusError(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode != 0
	}
	return false
}
