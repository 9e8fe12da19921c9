// Package services provides the application operations over workflows:
// create, update, delete, validate, execute, and template derivation.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidSortField   = errors.New("invalid sort field")
	ErrInvalidSortOrder   = errors.New("invalid sort order")
	ErrNameRequired       = errors.New("workflow name is required")
	ErrCategoryRequired   = errors.New("workflow category is required")
	ErrWorkflowIDRequired = errors.New("workflow id is required")
	ErrInvalidImportData  = errors.New("import data has no nodes")
	ErrUnknownTemplate    = errors.New("unknown template")
	ErrWorkflowNotActive  = errors.New("workflow is not active")

	// Business logic conflicts (409 Conflict).
	ErrActiveExecutions = errors.New("workflow has executions in flight")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrCategoryRequired) ||
		errors.Is(err, ErrWorkflowIDRequired) ||
		errors.Is(err, ErrInvalidImportData) ||
		errors.Is(err, ErrUnknownTemplate) ||
		errors.Is(err, ErrWorkflowNotActive)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrActiveExecutions)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
