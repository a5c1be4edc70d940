// Package apierr is the gateway-facing structured error type: order
// rejections, cancel/modify rejections, and the router/journal failures
// that halt a pair all flow through here. It is the boundary type the
// HTTP gateway serializes, translating an internal domain.RejectReason
// or router error into a stable code, severity, and HTTP status without
// leaking matcher internals.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/matcher"
	"github.com/obmatch/matchcore/internal/router"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnknownPair       Code = "UNKNOWN_PAIR"
	CodeTickLotViolation  Code = "TICK_LOT_VIOLATION"
	CodeFillOrKill        Code = "FILL_OR_KILL_REJECTED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeDuplicateClientID Code = "DUPLICATE_CLIENT_ORDER_ID"
	CodeQueueFull         Code = "QUEUE_FULL"
	CodePairHalted        Code = "PAIR_HALTED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Severity classifies how urgently an error needs operator attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// Error is the structured error returned across the engine/gateway
// boundary.
type Error struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error's code to the status the gateway responds
// with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeTickLotViolation, CodeFillOrKill, CodeDuplicateClientID:
		return http.StatusUnprocessableEntity
	case CodeUnknownPair, CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeQueueFull:
		return http.StatusTooManyRequests
	case CodePairHalted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code Code, severity Severity, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Severity: severity, Timestamp: time.Now(), Cause: cause}
}

var rejectCodes = map[domain.RejectReason]Code{
	domain.ReasonValidation:        CodeValidation,
	domain.ReasonUnknownPair:       CodeUnknownPair,
	domain.ReasonTickLotViolation:  CodeTickLotViolation,
	domain.ReasonFillOrKill:        CodeFillOrKill,
	domain.ReasonNotFound:          CodeNotFound,
	domain.ReasonUnauthorized:      CodeUnauthorized,
	domain.ReasonDuplicateClientID: CodeDuplicateClientID,
}

// FromReject turns a domain rejection reason into a client-facing Error.
func FromReject(reason domain.RejectReason, detail string) *Error {
	code, ok := rejectCodes[reason]
	if !ok {
		code = CodeValidation
	}
	return newError(code, SeverityMedium, detail, nil)
}

// FromRouterErr classifies an error returned by the router/matcher into
// a client-facing Error, distinguishing expected backpressure and halt
// conditions from genuinely unexpected failures.
func FromRouterErr(err error) *Error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, router.ErrQueueFull):
		return newError(CodeQueueFull, SeverityLow, "pair command queue is full, retry later", err)
	case errors.Is(err, router.ErrPairHalted):
		return newError(CodePairHalted, SeverityCritical, "pair is halted after a durability failure", err)
	}

	var invariant *matcher.InvariantViolation
	if errors.As(err, &invariant) {
		return newError(CodePairHalted, SeverityCritical, invariant.Detail, err)
	}

	return newError(CodeInternal, SeverityCritical, "internal error", err)
}

// IsRetryable reports whether the gateway should advise the caller to
// retry the request unchanged.
func IsRetryable(err *Error) bool {
	return err != nil && err.Code == CodeQueueFull
}
