package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingPaymentParam = "MISSING_PAYMENT_PARAMETERS"
	ErrCodeSignatureMismatch   = "SIGNATURE_MISMATCH"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeDuplicatePayment    = "DUPLICATE_PAYMENT"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeTaskNotFound        = "TASK_NOT_FOUND"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so specialised messages
// still satisfy errors.Is against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrMissingPaymentParams = NewDomainError(ErrCodeMissingPaymentParam, "payment verification failed")
	ErrSignatureMismatch    = NewDomainError(ErrCodeSignatureMismatch, "payment verification failed")
	ErrValidation           = NewDomainError(ErrCodeValidation, "request validation failed")
	ErrInvalidTransition    = NewDomainError(ErrCodeInvalidTransition, "status transition not permitted")
	ErrOrderNotFound        = NewDomainError(ErrCodeOrderNotFound, "order not found")
	ErrConflict             = NewDomainError(ErrCodeConflict, "order was modified concurrently")
	ErrDuplicatePayment     = NewDomainError(ErrCodeDuplicatePayment, "payment already recorded")
	ErrPersistence          = NewDomainError(ErrCodePersistence, "order could not be recorded")
	ErrUnauthorised         = NewDomainError(ErrCodeUnauthorised, "authentication required")
	ErrForbidden            = NewDomainError(ErrCodeForbidden, "not permitted")
	ErrTaskNotFound         = NewDomainError(ErrCodeTaskNotFound, "outbox task not found")
)

// ValidationError builds a ValidationFailure with a specific message.
func ValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// TransitionError builds an InvalidTransition with a specific message.
func TransitionError(message string) *DomainError {
	return NewDomainError(ErrCodeInvalidTransition, message)
}

// IsAuthenticityFailure reports whether err means the payment proof was missing or forged.
func IsAuthenticityFailure(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrCodeMissingPaymentParam || de.Code == ErrCodeSignatureMismatch
}
