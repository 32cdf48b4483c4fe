// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable reason reported to callers.
type Code string

const (
	// Validation
	CodeMissingField       Code = "missing_required_field"
	CodeInvalidPaymentType Code = "invalid_payment_type"
	CodeInvalidCurrency    Code = "invalid_currency"
	CodeInvalidAmount      Code = "invalid_amount"
	CodeInvalidConfig      Code = "invalid_config"

	// Lookup
	CodeLicenseNotFound   Code = "license_not_found"
	CodeLicenseInactive   Code = "license_inactive"
	CodeProcessorNotFound Code = "processor_not_found"

	// Processor availability and checkout
	CodeNoProcessorAvailable   Code = "no_processor_available"
	CodeCheckoutCreationFailed Code = "checkout_creation_failed"

	// Payment proof
	CodeMissingOrderID   Code = "missing_order_id"
	CodeOrderNotFound    Code = "order_not_found"
	CodeOrderNotPaid     Code = "order_not_paid"
	CodeSessionMismatch  Code = "session_mismatch"
	CodeLicenseMismatch  Code = "license_mismatch"
	CodeOrderExpired     Code = "order_expired"
	CodeProofGeneration  Code = "proof_generation_failed"
	CodeInvalidSignature Code = "invalid_signature"
	CodeTokenExpired     Code = "expired"
	CodeMalformedToken   Code = "malformed"

	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"
)

// Error is a recoverable, reported failure. Two errors are considered equal by
// errors.Is when their codes match, so sentinels below work through wrapping.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingField           = &Error{Code: CodeMissingField}
	ErrInvalidPaymentType     = &Error{Code: CodeInvalidPaymentType}
	ErrInvalidCurrency        = &Error{Code: CodeInvalidCurrency}
	ErrInvalidAmount          = &Error{Code: CodeInvalidAmount}
	ErrInvalidConfig          = &Error{Code: CodeInvalidConfig}
	ErrLicenseNotFound        = &Error{Code: CodeLicenseNotFound}
	ErrLicenseInactive        = &Error{Code: CodeLicenseInactive}
	ErrProcessorNotFound      = &Error{Code: CodeProcessorNotFound}
	ErrNoProcessorAvailable   = &Error{Code: CodeNoProcessorAvailable}
	ErrCheckoutCreationFailed = &Error{Code: CodeCheckoutCreationFailed}
	ErrMissingOrderID         = &Error{Code: CodeMissingOrderID}
	ErrOrderNotFound          = &Error{Code: CodeOrderNotFound}
	ErrOrderNotPaid           = &Error{Code: CodeOrderNotPaid}
	ErrSessionMismatch        = &Error{Code: CodeSessionMismatch}
	ErrLicenseMismatch        = &Error{Code: CodeLicenseMismatch}
	ErrOrderExpired           = &Error{Code: CodeOrderExpired}
	ErrProofGenerationFailed  = &Error{Code: CodeProofGeneration}
	ErrInvalidSignature       = &Error{Code: CodeInvalidSignature}
	ErrTokenExpired           = &Error{Code: CodeTokenExpired}
	ErrMalformedToken         = &Error{Code: CodeMalformedToken}
	ErrUnauthorized           = &Error{Code: CodeUnauthorized}
)

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeMissingField, CodeInvalidPaymentType, CodeInvalidCurrency,
		CodeInvalidAmount, CodeInvalidConfig, CodeMissingOrderID:
		return http.StatusBadRequest
	case CodeLicenseNotFound, CodeProcessorNotFound:
		return http.StatusNotFound
	case CodeLicenseInactive, CodeLicenseMismatch, CodeSessionMismatch:
		return http.StatusConflict
	case CodeOrderNotFound, CodeOrderNotPaid, CodeOrderExpired:
		return http.StatusPaymentRequired
	case CodeNoProcessorAvailable:
		return http.StatusServiceUnavailable
	case CodeCheckoutCreationFailed:
		return http.StatusBadGateway
	case CodeInvalidSignature, CodeTokenExpired, CodeMalformedToken, CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
