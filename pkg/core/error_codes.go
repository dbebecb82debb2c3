package core

import (
	"errors"
	"strconv"

	"github.com/bytedance/sonic"
)

// ErrorCode represents a stable, machine-readable error identifier.
type ErrorCode string

// Error code constants.
const (
	ErrCodeNetwork       ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
	ErrCodeCanceled      ErrorCode = "CANCELED"
	ErrCodeDecode        ErrorCode = "DECODE_ERROR"
	ErrCodeInvalidParams ErrorCode = "INVALID_PARAMS"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Client state errors
	ErrCodeClientClosed   ErrorCode = "CLIENT_CLOSED"
	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"
	ErrCodeNoCredentials  ErrorCode = "NO_CREDENTIALS"
)

// Graviex API error codes as returned in the {"error":{"code":..}} envelope.
const (
	APICodeAuthorization    = 2001
	APICodeCreateOrder      = 2002
	APICodeCancelOrder      = 2003
	APICodeOrderNotFound    = 2004
	APICodeBadSignature     = 2005
	APICodeTonceUsed        = 2006
	APICodeInvalidTonce     = 2007
	APICodeInvalidAccessKey = 2008
)

type apiErrorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseAPIError extracts the code and message from a Graviex error body.
// ok is false when the body is not an error envelope.
func ParseAPIError(body []byte) (code int, message string, ok bool) {
	var env apiErrorEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil || env.Error == nil {
		return 0, "", false
	}
	return env.Error.Code, env.Error.Message, true
}

// ErrorTypeForAPICode refines a status-derived type using the envelope code.
func ErrorTypeForAPICode(code int, fallback ErrorType) ErrorType {
	switch code {
	case APICodeAuthorization, APICodeBadSignature, APICodeTonceUsed,
		APICodeInvalidTonce, APICodeInvalidAccessKey:
		return ErrorTypeAuthentication
	case APICodeCreateOrder, APICodeCancelOrder:
		return ErrorTypeInvalidOrder
	case APICodeOrderNotFound:
		return ErrorTypeNotFound
	default:
		return fallback
	}
}

// ApplyAPIError copies the envelope fields of body into e, if present.
func (e *RequestError) ApplyAPIError(body []byte) *RequestError {
	code, msg, ok := ParseAPIError(body)
	if !ok {
		return e
	}
	e.Code = strconv.Itoa(code)
	e.Message = msg
	e.Type = ErrorTypeForAPICode(code, e.Type)
	return e
}

// sentinelCodes maps the codes of failures reported through sentinel errors.
var sentinelCodes = map[ErrorCode]error{
	ErrCodeInvalidConfig:  ErrInvalidConfig,
	ErrCodeClientClosed:   ErrClientClosed,
	ErrCodeCircuitBreaker: ErrCircuitBreakerOpen,
	ErrCodeNoCredentials:  ErrNoCredentials,
}

// IsErrorCode checks if the error carries the specified code, either on a
// RequestError in its chain or through the matching sentinel error.
func IsErrorCode(err error, code ErrorCode) bool {
	if sentinel, ok := sentinelCodes[code]; ok && errors.Is(err, sentinel) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return ErrorCode(reqErr.Code) == code
	}
	return false
}
