// Package errors provides the typed error taxonomy for the authorization
// domain. Every failure surfaced by the withdrawal queue and the proposal
// engine wraps one of these sentinels so callers can categorize it.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a malformed amount, currency or signer set.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown request, proposal or wallet id.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidState indicates an action attempted from a non-eligible status,
	// e.g. approving an already-decided request.
	ErrInvalidState = errors.New("invalid state")

	// ErrExpired indicates the record's TTL has elapsed.
	ErrExpired = errors.New("expired")

	// ErrUnauthorized indicates the actor is not in the required role or signer set.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateApproval indicates the same signer approving twice.
	ErrDuplicateApproval = errors.New("duplicate approval")

	// ErrExecutorFailure indicates the external fund-transfer send failed.
	ErrExecutorFailure = errors.New("executor failure")

	// ErrInternal indicates a store or infrastructure failure.
	ErrInternal = errors.New("internal error")
)

// DomainError carries a sentinel, a stable code and optional context.
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target sentinel.
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails adds details to the error.
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// InvalidInputError creates an invalid input error for a specific field.
func InvalidInputError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "INVALID_INPUT",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InvalidStateError creates an invalid state error recording the status the
// record was actually in.
func InvalidStateError(resource, status string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Code:    "INVALID_STATE",
		Message: fmt.Sprintf("cannot act on %s with status %s", resource, status),
		Details: map[string]interface{}{
			"status": status,
		},
	}
}

// ExpiredError creates an expired error.
func ExpiredError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrExpired,
		Code:    "EXPIRED",
		Message: fmt.Sprintf("%s has expired", resource),
	}
}

// UnauthorizedError creates an unauthorized error.
func UnauthorizedError(message string) *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// DuplicateApprovalError creates a duplicate approval error.
func DuplicateApprovalError(signerID string) *DomainError {
	return &DomainError{
		Err:     ErrDuplicateApproval,
		Code:    "DUPLICATE_APPROVAL",
		Message: "signer has already approved this proposal",
		Details: map[string]interface{}{
			"signer_id": signerID,
		},
	}
}

// ExecutorFailureError wraps a failed external send.
func ExecutorFailureError(err error) *DomainError {
	return &DomainError{
		Err:     ErrExecutorFailure,
		Code:    "EXECUTOR_FAILURE",
		Message: "transaction execution failed",
		Details: map[string]interface{}{
			"cause": err.Error(),
		},
	}
}

// InternalError wraps a store or infrastructure failure.
func InternalError(message string, err error) *DomainError {
	return &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"cause": err.Error(),
		},
	}
}

// IsInvalidInput checks if an error is an invalid input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState checks if an error is an invalid state error.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsExpired checks if an error is an expired error.
func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

// IsUnauthorized checks if an error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsDuplicateApproval checks if an error is a duplicate approval error.
func IsDuplicateApproval(err error) bool {
	return errors.Is(err, ErrDuplicateApproval)
}

// IsExecutorFailure checks if an error is an executor failure.
func IsExecutorFailure(err error) bool {
	return errors.Is(err, ErrExecutorFailure)
}

// GetErrorCode extracts the stable code from a domain error.
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}
