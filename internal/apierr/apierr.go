// Package apierr defines the relay's stable error taxonomy so that HTTP
// bodies and WebSocket error frames always render the same codes.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code is one of the stable error codes shared by both transports.
type Code string

const (
	Unauthorized        Code = "UNAUTHORIZED"
	TokenExpired         Code = "TOKEN_EXPIRED"
	TokenInvalid         Code = "TOKEN_INVALID"
	InvalidCredentials   Code = "INVALID_CREDENTIALS"
	PairingInvalid       Code = "PAIRING_INVALID"
	PairingExpired       Code = "PAIRING_EXPIRED"
	PairingAttemptsOver  Code = "PAIRING_ATTEMPTS_EXCEEDED"
	AgentSecretMismatch  Code = "AGENT_SECRET_MISMATCH"
	AgentOffline         Code = "AGENT_OFFLINE"
	AgentNotPaired       Code = "AGENT_NOT_PAIRED"
	MessageTooLarge      Code = "MESSAGE_TOO_LARGE"
	InvalidMessage       Code = "INVALID_MESSAGE"
	RateLimited          Code = "RATE_LIMITED"
	FreePlanLimit        Code = "FREE_PLAN_LIMIT"
	InternalError        Code = "INTERNAL_ERROR"
)

// httpStatus maps each code to the status it renders as over HTTP.
var httpStatus = map[Code]int{
	Unauthorized:        http.StatusUnauthorized,
	TokenExpired:        http.StatusUnauthorized,
	TokenInvalid:        http.StatusUnauthorized,
	InvalidCredentials:  http.StatusUnauthorized,
	PairingInvalid:      http.StatusBadRequest,
	PairingExpired:      http.StatusBadRequest,
	PairingAttemptsOver: http.StatusBadRequest,
	AgentSecretMismatch: http.StatusUnauthorized,
	AgentOffline:        http.StatusConflict,
	AgentNotPaired:      http.StatusNotFound,
	MessageTooLarge:     http.StatusRequestEntityTooLarge,
	InvalidMessage:      http.StatusBadRequest,
	RateLimited:         http.StatusTooManyRequests,
	FreePlanLimit:       http.StatusPaymentRequired,
	InternalError:       http.StatusInternalServerError,
}

// Error is the one error type every layer of the relay returns or wraps.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status this error's code renders as.
func (e *Error) Status() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteHTTP aborts the gin context with this error's JSON body.
func WriteHTTP(c *gin.Context, err *Error) {
	c.AbortWithStatusJSON(err.Status(), gin.H{
		"error": err.Code,
		"message": err.Message,
	})
}

// Frame renders this error as the body of a WebSocket "error" frame. The
// caller is responsible for setting requestID when one is in scope.
func Frame(requestID string, err *Error) map[string]interface{} {
	f := map[string]interface{}{
		"type":    "error",
		"code":    err.Code,
		"message": err.Message,
	}
	if requestID != "" {
		f["request_id"] = requestID
	}
	return f
}

// Internal wraps an opaque cause without leaking it to the caller.
func Internal(cause error) *Error {
	return Wrap(InternalError, "internal error", cause)
}
